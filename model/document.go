package model

import (
	"time"
)

// DocumentType identifies what an uploaded file evidences
type DocumentType string

const (
	DocProposal  DocumentType = "proposal"
	DocGPSPhoto  DocumentType = "gps_photo"
	DocLabReport DocumentType = "lab_report"
	DocInvoice   DocumentType = "invoice"
)

// RequiredDocuments must all be present before a project can be submitted
var RequiredDocuments = []DocumentType{DocProposal, DocGPSPhoto}

func (t DocumentType) Valid() bool {
	switch t {
	case DocProposal, DocGPSPhoto, DocLabReport, DocInvoice:
		return true
	}
	return false
}

// GPSData is location metadata extracted from a photo's EXIF block
type GPSData struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Verified    bool    `json:"verified"`
	Timestamp   string  `json:"timestamp,omitempty"`
	CameraMake  string  `json:"camera_make,omitempty"`
	CameraModel string  `json:"camera_model,omitempty"`
}

// Document is a file attached to exactly one project
type Document struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	DocumentType DocumentType `json:"document_type"`
	FileName     string       `json:"file_name"`
	FileSize     int64        `json:"file_size"`
	Locator      string       `json:"locator"`
	FileHash     string       `json:"file_hash"`
	UploadedBy   string       `json:"uploaded_by"`
	GPSData      *GPSData     `json:"gps_data,omitempty"`
	UploadedAt   time.Time    `json:"uploaded_at"`
}

// UploadResult is the response of POST /projects/{id}/upload-document
type UploadResult struct {
	Success     bool     `json:"success"`
	DocumentID  string   `json:"document_id"`
	Locator     string   `json:"locator"`
	FileHash    string   `json:"file_hash"`
	GPSVerified bool     `json:"gps_verified"`
	GPSData     *GPSData `json:"gps_data,omitempty"`
}
