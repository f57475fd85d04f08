package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(&config.APIConfig{BaseURL: srv.URL + "/api", TimeoutSeconds: 5})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClientCreateProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/projects" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON body, got %q", r.Header.Get("Content-Type"))
		}
		var in model.ProjectCreate
		json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusOK, model.Project{ID: "p1", Name: in.Name, Budget: in.Budget})
	})

	p, err := c.CreateProject(context.Background(), &model.ProjectCreate{Name: "Park", Budget: 10})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID != "p1" || p.Name != "Park" {
		t.Errorf("Unexpected project %+v", p)
	}
}

func TestClientCreateProjectWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"name": "Park"})
	})

	if _, err := c.CreateProject(context.Background(), &model.ProjectCreate{Name: "Park"}); err == nil {
		t.Error("Expected error when the server returns no project id")
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		notFound   bool
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"Missing required documents: gps_photo"}`, "Missing required documents: gps_photo", false},
		{"error key", http.StatusUnauthorized, `{"error":"Invalid token"}`, "Invalid token", false},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":"budget"}]}`, `[{"loc":"budget"}]`, false},
		{"not found", http.StatusNotFound, `{"detail":"Authority not found"}`, "Authority not found", true},
		{"unavailable", http.StatusServiceUnavailable, `oops`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.Stats(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, apiErr.StatusCode)
			}
			if got := Detail(err); got != tt.wantDetail {
				t.Errorf("Expected detail %q, got %q", tt.wantDetail, got)
			}
			if IsNotFound(err) != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", IsNotFound(err), tt.notFound)
			}
		})
	}
}

func TestClientHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		if got := r.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("Expected request id, got %q", got)
		}
		writeJSON(w, http.StatusOK, model.Authority{ID: "a1", Username: "rev"})
	})

	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-1")
	a, err := c.WithToken("tok").Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if a.ID != "a1" {
		t.Errorf("Unexpected authority %+v", a)
	}
	if c.token != "" {
		t.Error("WithToken must not modify the original client")
	}
}

func TestClientUploadDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/p1/upload-document" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if r.FormValue("document_type") != "gps_photo" || r.FormValue("uploaded_by") != "0xmanager" {
			t.Errorf("Unexpected form fields %v", r.MultipartForm.Value)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if header.Filename != "site.jpg" || string(data) != "jpeg-bytes" {
			t.Errorf("Unexpected file %s %q", header.Filename, data)
		}
		writeJSON(w, http.StatusOK, model.UploadResult{
			Success:     true,
			DocumentID:  "d1",
			GPSVerified: true,
			GPSData:     &model.GPSData{Latitude: 12.5, Longitude: -7.25, Verified: true},
		})
	})

	res, err := c.UploadDocument(context.Background(), "p1", model.DocGPSPhoto, "site.jpg", strings.NewReader("jpeg-bytes"), "0xmanager")
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if res.DocumentID != "d1" || res.GPSData == nil || res.GPSData.Longitude != -7.25 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestClientPendingAndDecide(t *testing.T) {
	var decided model.DecisionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/approvals/pending/0xABC":
			writeJSON(w, http.StatusOK, []model.ApprovalRequest{{ID: "ap1", ProjectID: "p1", Decision: model.DecisionPending}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/approvals/ap1/decide":
			json.NewDecoder(r.Body).Decode(&decided)
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})

	pending, err := c.PendingApprovals(context.Background(), "0xABC")
	if err != nil {
		t.Fatalf("PendingApprovals: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "ap1" {
		t.Fatalf("Unexpected pending %+v", pending)
	}

	if err := c.Decide(context.Background(), "ap1", model.DecisionRejected, "no permit"); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Decision != model.DecisionRejected || decided.Comments != "no permit" {
		t.Errorf("Unexpected decision body %+v", decided)
	}
}

func TestClientLoginNotAccepted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.LoginResponse{Success: false})
	})

	if _, err := c.Login(context.Background(), "rev", "pw"); err == nil {
		t.Error("Expected error for unsuccessful login")
	}
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(&config.APIConfig{BaseURL: srv.URL, TimeoutSeconds: 1})

	_, err := c.ListProjects(context.Background())
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	if IsNotFound(err) || Detail(err) != "" {
		t.Errorf("Transport errors carry no API status, got %v", err)
	}
}
