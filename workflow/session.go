package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AnTengye/civicfund/client"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
)

// Session is the identity a workflow acts under. It is either a password
// login (Authority and Token set) or a connected wallet (Wallet set).
type Session struct {
	Authority *model.Authority `yaml:"authority,omitempty"`
	Token     string           `yaml:"token,omitempty"`
	ExpiresAt string           `yaml:"expires_at,omitempty"`
	Wallet    string           `yaml:"wallet,omitempty"`
}

func (s *Session) IsWallet() bool {
	return s != nil && s.Wallet != ""
}

// Account is the address recorded as manager or uploader for actions taken
// under this session.
func (s *Session) Account() string {
	if s == nil {
		return ""
	}
	if s.Wallet != "" {
		return s.Wallet
	}
	if s.Authority != nil {
		if s.Authority.WalletAddress != "" {
			return s.Authority.WalletAddress
		}
		return s.Authority.Username
	}
	return ""
}

// SessionStore keeps a single session in a YAML file between invocations
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Path returns the session file location
func (s *SessionStore) Path() string {
	return s.path
}

// Save writes sess atomically with owner-only permissions
func (s *SessionStore) Save(sess *Session) error {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Load returns ErrNoSession when nothing has been saved
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Authority == nil && sess.Wallet == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Clear removes the saved session; a missing file is not an error
func (s *SessionStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// LoginAPI is the part of the API used to open and check sessions
type LoginAPI interface {
	Login(ctx context.Context, username, password string) (*model.LoginResponse, error)
}

// Login authenticates an authority and persists the resulting session
func Login(ctx context.Context, api LoginAPI, store *SessionStore, username, password string) (*Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, invalid(MsgCredentials)
	}

	resp, err := api.Login(ctx, username, password)
	if err != nil {
		msg := client.Detail(err)
		if msg == "" {
			msg = "Login failed"
		}
		return nil, &OpError{Message: msg, Err: err}
	}

	sess := &Session{
		Authority: resp.Authority,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	}
	if err := store.Save(sess); err != nil {
		return nil, err
	}

	logger.Info(logger.WithAuthority(ctx, resp.Authority.ID), "authority logged in", "username", resp.Authority.Username)
	return sess, nil
}

// ConnectWallet opens a wallet session. Authorization against the allow-list
// happens in EnsureAuthorityExists, not here.
func ConnectWallet(store *SessionStore, address string) (*Session, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, invalid("Wallet address is required")
	}
	sess := &Session{Wallet: address}
	if err := store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout ends the session and forgets it
func Logout(ctx context.Context, store *SessionStore) error {
	if err := store.Clear(); err != nil {
		return err
	}
	logger.Info(ctx, "session cleared")
	return nil
}

// MeAPI validates a bearer token
type MeAPI interface {
	Me(ctx context.Context) (*model.Authority, error)
}

// Restore loads the saved session. Password sessions are checked against the
// API with check, which must carry the session token; a rejected token clears
// the stored session.
func Restore(ctx context.Context, store *SessionStore, check func(token string) MeAPI) (*Session, error) {
	sess, err := store.Load()
	if err != nil {
		return nil, err
	}
	if sess.IsWallet() || check == nil {
		return sess, nil
	}

	authority, err := check(sess.Token).Me(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			if err := store.Clear(); err != nil {
				logger.Warn(ctx, "failed to clear rejected session", "path", store.Path(), "error", err)
			}
			return nil, ErrNoSession
		}
		return nil, err
	}
	sess.Authority = authority
	return sess, nil
}
