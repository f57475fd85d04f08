// Package client talks to the project funding REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err means the addressed record does not exist.
// The API answers 503 for an unknown authority as well as 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusServiceUnavailable
}

// Detail returns the server-provided message carried by err, or "" if none.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// New creates a client for the API described by cfg
func New(cfg *config.APIConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// WithToken returns a copy of the client that sends token as a bearer credential
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProjects fetches every project for the dashboard
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.getJSON(ctx, "/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches a single project by id
func (c *Client) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var project model.Project
	if err := c.getJSON(ctx, "/projects/"+url.PathEscape(projectID), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Stats fetches the dashboard aggregates
func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if err := c.getJSON(ctx, "/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreateProject creates a project and returns the server's record
func (c *Client) CreateProject(ctx context.Context, in *model.ProjectCreate) (*model.Project, error) {
	var project model.Project
	if err := c.postJSON(ctx, "/projects", in, &project); err != nil {
		return nil, err
	}
	if project.ID == "" {
		return nil, errors.New("create project: response carried no project id")
	}
	return &project, nil
}

// UploadDocument sends one file as multipart form data
func (c *Client) UploadDocument(ctx context.Context, projectID string, docType model.DocumentType, fileName string, r io.Reader, uploadedBy string) (*model.UploadResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if err := w.WriteField("document_type", string(docType)); err != nil {
		return nil, err
	}
	if err := w.WriteField("uploaded_by", uploadedBy); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/projects/%s/upload-document", url.PathEscape(projectID))
	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result model.UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitForApproval finalizes a project submission
func (c *Client) SubmitForApproval(ctx context.Context, projectID string) (*model.SubmitResult, error) {
	var result model.SubmitResult
	path := fmt.Sprintf("/projects/%s/submit-approval", url.PathEscape(projectID))
	if err := c.postJSON(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDocuments lists the documents attached to a project
func (c *Client) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	var docs []model.Document
	path := fmt.Sprintf("/projects/%s/documents", url.PathEscape(projectID))
	if err := c.getJSON(ctx, path, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// PendingApprovals lists undecided requests addressed to an authority id or wallet address
func (c *Client) PendingApprovals(ctx context.Context, authorityID string) ([]model.ApprovalRequest, error) {
	var approvals []model.ApprovalRequest
	if err := c.getJSON(ctx, "/approvals/pending/"+url.PathEscape(authorityID), &approvals); err != nil {
		return nil, err
	}
	return approvals, nil
}

// Decide records a decision on an approval request
func (c *Client) Decide(ctx context.Context, approvalID string, decision model.Decision, comments string) error {
	path := fmt.Sprintf("/approvals/%s/decide", url.PathEscape(approvalID))
	return c.postJSON(ctx, path, &model.DecisionRequest{Decision: decision, Comments: comments}, nil)
}

// Login exchanges authority credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := c.postJSON(ctx, "/auth/authority/login", &model.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Authority == nil {
		return nil, errors.New("login was not accepted")
	}
	return &resp, nil
}

// Register creates an authority account
func (c *Client) Register(ctx context.Context, in *model.RegisterRequest) (*model.RegisterResponse, error) {
	var resp model.RegisterResponse
	if err := c.postJSON(ctx, "/auth/authority/register", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the authority behind the client's bearer token
func (c *Client) Me(ctx context.Context) (*model.Authority, error) {
	var authority model.Authority
	if err := c.getJSON(ctx, "/auth/authority/me", &authority); err != nil {
		return nil, err
	}
	return &authority, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	logger.Debug(req.Context(), "api call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorDetail pulls the message out of {"detail": ...} or {"error": ...}
func errorDetail(body []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch d := payload.Detail.(type) {
	case string:
		return d
	case nil:
	default:
		if b, err := json.Marshal(d); err == nil {
			return string(b)
		}
	}
	return payload.Error
}
