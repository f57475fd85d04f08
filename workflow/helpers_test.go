package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/civicfund/client"
	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/handler"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/service"
)

var errBoom = errors.New("boom")

// recordingNotifier keeps every message it is given
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) add(kind, msg string) {
	n.mu.Lock()
	n.messages = append(n.messages, kind+": "+msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Info(ctx context.Context, msg string)    { n.add("info", msg) }
func (n *recordingNotifier) Success(ctx context.Context, msg string) { n.add("success", msg) }
func (n *recordingNotifier) Error(ctx context.Context, msg string)   { n.add("error", msg) }

func (n *recordingNotifier) has(entry string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.messages {
		if m == entry {
			return true
		}
	}
	return false
}

// testServer is the development API behind httptest, counting requests by
// "METHOD /path".
type testServer struct {
	store  *service.Store
	client *client.Client

	mu     sync.Mutex
	counts map[string]int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", TokenExpireHours: 1}}
	ts := &testServer{
		store:  service.NewStore(&config.StoreConfig{}),
		counts: make(map[string]int),
	}
	router := handler.NewRouter(cfg, ts.store, service.NewMemoryBlobStore("docs"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.counts[r.Method+" "+r.URL.Path]++
		ts.mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	ts.client = client.New(&config.APIConfig{BaseURL: srv.URL + "/api", TimeoutSeconds: 5})
	return ts
}

// requests counts requests whose "METHOD /path" starts with prefix
func (ts *testServer) requests(prefix string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	n := 0
	for k, v := range ts.counts {
		if strings.HasPrefix(k, prefix) {
			n += v
		}
	}
	return n
}

// submitProject creates a project with the required documents and submits it
func (ts *testServer) submitProject(t *testing.T, name string) *model.Project {
	t.Helper()
	p := ts.store.CreateProject(&model.ProjectCreate{Name: name, Category: "Education", Budget: 900, ContractorName: "Acme"})
	for _, dt := range model.RequiredDocuments {
		if err := ts.store.AddDocument(&model.Document{ProjectID: p.ID, DocumentType: dt, FileName: string(dt)}); err != nil {
			t.Fatalf("AddDocument: %v", err)
		}
	}
	if _, err := ts.store.SubmitForApproval(p.ID); err != nil {
		t.Fatalf("SubmitForApproval: %v", err)
	}
	return p
}

// fakeAPI implements every API interface with overridable funcs and call counts
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	createProject func(in *model.ProjectCreate) (*model.Project, error)
	upload        func(docType model.DocumentType, fileName string) (*model.UploadResult, error)
	submit        func(projectID string) (*model.SubmitResult, error)
	pending       func(ctx context.Context, authorityID string) ([]model.ApprovalRequest, error)
	decide        func(approvalID string, decision model.Decision, comments string) error
	documents     func(projectID string) ([]model.Document, error)
	register      func(in *model.RegisterRequest) (*model.RegisterResponse, error)
	login         func(username, password string) (*model.LoginResponse, error)
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) CreateProject(ctx context.Context, in *model.ProjectCreate) (*model.Project, error) {
	f.record("create")
	if f.createProject != nil {
		return f.createProject(in)
	}
	return &model.Project{ID: "p1", Name: in.Name, Budget: in.Budget}, nil
}

func (f *fakeAPI) UploadDocument(ctx context.Context, projectID string, docType model.DocumentType, fileName string, r io.Reader, uploadedBy string) (*model.UploadResult, error) {
	f.record("upload")
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	if f.upload != nil {
		return f.upload(docType, fileName)
	}
	return &model.UploadResult{Success: true, DocumentID: fileName}, nil
}

func (f *fakeAPI) SubmitForApproval(ctx context.Context, projectID string) (*model.SubmitResult, error) {
	f.record("submit")
	if f.submit != nil {
		return f.submit(projectID)
	}
	return &model.SubmitResult{Success: true, TxHash: "0xabc", Approvals: 1}, nil
}

func (f *fakeAPI) PendingApprovals(ctx context.Context, authorityID string) ([]model.ApprovalRequest, error) {
	f.record("pending")
	if f.pending != nil {
		return f.pending(ctx, authorityID)
	}
	return []model.ApprovalRequest{}, nil
}

func (f *fakeAPI) Decide(ctx context.Context, approvalID string, decision model.Decision, comments string) error {
	f.record("decide")
	if f.decide != nil {
		return f.decide(approvalID, decision, comments)
	}
	return nil
}

func (f *fakeAPI) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	f.record("documents")
	if f.documents != nil {
		return f.documents(projectID)
	}
	return nil, nil
}

func (f *fakeAPI) Register(ctx context.Context, in *model.RegisterRequest) (*model.RegisterResponse, error) {
	f.record("register")
	if f.register != nil {
		return f.register(in)
	}
	return &model.RegisterResponse{Success: true, AuthorityID: "new-authority"}, nil
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	f.record("login")
	if f.login != nil {
		return f.login(username, password)
	}
	return &model.LoginResponse{Success: true, Authority: &model.Authority{ID: "a1", Username: username}, Token: "tok"}, nil
}
