package handler

import (
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnTengye/civicfund/model"
)

func TestProjectHandlerCreate(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name           string
		body           model.ProjectCreate
		expectedStatus int
	}{
		{"valid", model.ProjectCreate{Name: "Bridge", Category: "Transportation", Budget: 100}, http.StatusOK},
		{"default category", model.ProjectCreate{Name: "Road", Budget: 1}, http.StatusOK},
		{"missing name", model.ProjectCreate{Name: "  ", Budget: 100}, http.StatusBadRequest},
		{"zero budget", model.ProjectCreate{Name: "Bridge", Budget: 0}, http.StatusBadRequest},
		{"negative budget", model.ProjectCreate{Name: "Bridge", Budget: -5}, http.StatusBadRequest},
		{"unknown category", model.ProjectCreate{Name: "Bridge", Category: "Space", Budget: 100}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, "POST", "/api/projects", tt.body, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code != http.StatusOK {
				return
			}
			p := decode[model.Project](t, w)
			if p.ID == "" || p.ApprovalStatus != model.ApprovalDraft {
				t.Errorf("Unexpected project %+v", p)
			}
			if tt.body.Category == "" && p.Category != model.DefaultCategory {
				t.Errorf("Expected default category, got %q", p.Category)
			}
		})
	}
}

func TestProjectHandlerListGetStats(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProject(t, "Clinic")

	if list := decode[[]model.Project](t, api.do(t, "GET", "/api/projects", nil, nil)); len(list) != 1 {
		t.Errorf("Expected 1 project, got %d", len(list))
	}

	w := api.do(t, "GET", "/api/projects/"+p.ID, nil, nil)
	if w.Code != http.StatusOK || decode[model.Project](t, w).Name != "Clinic" {
		t.Errorf("Unexpected get response %d: %s", w.Code, w.Body.String())
	}

	if w := api.do(t, "GET", "/api/projects/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	stats := decode[model.Stats](t, api.do(t, "GET", "/api/stats", nil, nil))
	if stats.TotalProjects != 1 || stats.BudgetByCategory["Healthcare"] != 5000 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestProjectHandlerUploadDocument(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProject(t, "Clinic")

	w := api.upload(t, p.ID, "proposal", "proposal.pdf", []byte("%PDF-1.4 proposal"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[model.UploadResult](t, w)
	if !res.Success || res.DocumentID == "" || res.FileHash == "" {
		t.Errorf("Unexpected upload result %+v", res)
	}
	if res.GPSVerified || res.GPSData != nil {
		t.Error("Proposal must not carry GPS data")
	}
	if !strings.HasPrefix(res.Locator, "memory://test-bucket/projects/"+p.ID+"/") {
		t.Errorf("Unexpected locator %q", res.Locator)
	}
	objectName := strings.TrimPrefix(res.Locator, "memory://test-bucket/")
	if data, ok := api.blobs.Get(objectName); !ok || string(data) != "%PDF-1.4 proposal" {
		t.Errorf("Expected stored bytes for %s", objectName)
	}

	// A photo without EXIF is accepted but not GPS verified
	w = api.upload(t, p.ID, "gps_photo", "site.jpg", []byte{0xff, 0xd8, 0xff, 0xe0})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if res := decode[model.UploadResult](t, w); res.GPSVerified {
		t.Error("Expected photo without EXIF to be unverified")
	}

	docs := decode[[]model.Document](t, api.do(t, "GET", "/api/projects/"+p.ID+"/documents", nil, nil))
	if len(docs) != 2 || docs[0].DocumentType != model.DocProposal || docs[1].UploadedBy != "0xmanager" {
		t.Errorf("Unexpected documents %+v", docs)
	}
}

func TestProjectHandlerUploadGPSPhoto(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProject(t, "Water main")

	photo, err := os.ReadFile(filepath.Join("..", "service", "testdata", "gps_north_west.jpg"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	w := api.upload(t, p.ID, "gps_photo", "site.jpg", photo)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[model.UploadResult](t, w)
	if !res.GPSVerified || res.GPSData == nil {
		t.Fatalf("Expected GPS verified upload, got %+v", res)
	}
	if math.Abs(res.GPSData.Latitude-40.7128) > 1e-6 || math.Abs(res.GPSData.Longitude+74.006) > 1e-6 {
		t.Errorf("Unexpected coordinates %+v", res.GPSData)
	}
	if res.GPSData.CameraMake != "Canon" {
		t.Errorf("Expected camera make Canon, got %q", res.GPSData.CameraMake)
	}

	docs := decode[[]model.Document](t, api.do(t, "GET", "/api/projects/"+p.ID+"/documents", nil, nil))
	if len(docs) != 1 || docs[0].GPSData == nil || !docs[0].GPSData.Verified {
		t.Errorf("Expected stored GPS data, got %+v", docs)
	}

	// The same bytes uploaded as a proposal are not inspected
	w = api.upload(t, p.ID, "proposal", "scan.jpg", photo)
	if res := decode[model.UploadResult](t, w); res.GPSVerified || res.GPSData != nil {
		t.Errorf("Expected no GPS extraction for proposals, got %+v", res)
	}
}

func TestProjectHandlerUploadErrors(t *testing.T) {
	api := newTestAPI(t)
	p := api.createProject(t, "Clinic")

	tests := []struct {
		name           string
		projectID      string
		docType        string
		expectedStatus int
	}{
		{"unknown project", "missing", "proposal", http.StatusNotFound},
		{"invalid type", p.ID, "selfie", http.StatusBadRequest},
		{"empty type", p.ID, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.upload(t, tt.projectID, tt.docType, "f.pdf", []byte("x"))
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	w := api.do(t, "POST", "/api/projects/"+p.ID+"/upload-document", map[string]string{"document_type": "proposal"}, nil)
	if w.Code != http.StatusBadRequest || detail(t, w) != "Invalid multipart form" {
		t.Errorf("Expected invalid multipart form, got %d: %s", w.Code, w.Body.String())
	}
}

func TestProjectHandlerSubmitForApproval(t *testing.T) {
	api := newTestAPI(t)
	api.store.RegisterAuthority(model.Authority{Username: "rev"}, "pw")
	p := api.createProject(t, "Clinic")

	w := api.do(t, "POST", "/api/projects/"+p.ID+"/submit-approval", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if got := detail(t, w); got != "Missing required documents: proposal, gps_photo" {
		t.Errorf("Unexpected detail %q", got)
	}

	api.upload(t, p.ID, "proposal", "p.pdf", []byte("p"))
	api.upload(t, p.ID, "gps_photo", "g.jpg", []byte("g"))

	w = api.do(t, "POST", "/api/projects/"+p.ID+"/submit-approval", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[model.SubmitResult](t, w)
	if !res.Success || res.Approvals != 1 || !strings.HasPrefix(res.TxHash, "0x") {
		t.Errorf("Unexpected submit result %+v", res)
	}

	if w := api.do(t, "POST", "/api/projects/missing/submit-approval", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
