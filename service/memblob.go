package service

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryBlobStore keeps documents in process memory when no MinIO endpoint
// is configured.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

func NewMemoryBlobStore(bucket string) *MemoryBlobStore {
	return &MemoryBlobStore{bucket: bucket, objects: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	m.mu.Lock()
	m.objects[objectName] = data
	m.mu.Unlock()
	return fmt.Sprintf("memory://%s/%s", m.bucket, objectName), nil
}

func (m *MemoryBlobStore) Get(objectName string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectName]
	return data, ok
}
