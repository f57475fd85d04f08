package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
	"github.com/AnTengye/civicfund/service"
)

// MaxUploadSize caps a single document upload
const MaxUploadSize = 32 << 20

type ProjectHandler struct {
	store *service.Store
	blobs service.BlobStore
}

func NewProjectHandler(store *service.Store, blobs service.BlobStore) *ProjectHandler {
	return &ProjectHandler{store: store, blobs: blobs}
}

// List returns every project, newest first
func (h *ProjectHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.ListProjects())
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project := h.store.GetProject(c.Param("id"))
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// Create registers a new project in Draft approval state
func (h *ProjectHandler) Create(c *gin.Context) {
	var req model.ProjectCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Project name is required"})
		return
	}
	if req.Budget <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Budget must be greater than 0"})
		return
	}
	if req.Category == "" {
		req.Category = model.DefaultCategory
	}
	if !model.IsValidCategory(req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown project category"})
		return
	}

	project := h.store.CreateProject(&req)
	logger.Info(logger.WithProject(c.Request.Context(), project.ID), "project created",
		"name", project.Name,
		"category", project.Category,
		"budget", project.Budget,
	)
	c.JSON(http.StatusOK, project)
}

// UploadDocument stores one multipart file against a project. GPS photos
// have their EXIF coordinates extracted.
func (h *ProjectHandler) UploadDocument(c *gin.Context) {
	projectID := c.Param("id")
	ctx := logger.WithProject(c.Request.Context(), projectID)

	if h.store.GetProject(projectID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)
	if err := c.Request.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid multipart form"})
		return
	}

	docType := model.DocumentType(c.PostForm("document_type"))
	if !docType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Invalid document type: %q", docType)})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to read file"})
		return
	}

	fileName := filepath.Base(header.Filename)
	contentType := service.ContentType(fileName, header.Header.Get("Content-Type"), data)
	documentID := uuid.New().String()
	objectName := fmt.Sprintf("projects/%s/%s/%s", projectID, documentID, fileName)

	locator, err := h.blobs.Put(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		logger.Error(ctx, "document storage failed", "object", objectName, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store document"})
		return
	}

	doc := &model.Document{
		ID:           documentID,
		ProjectID:    projectID,
		DocumentType: docType,
		FileName:     fileName,
		FileSize:     int64(len(data)),
		Locator:      locator,
		FileHash:     service.FileHash(data),
		UploadedBy:   c.PostForm("uploaded_by"),
	}
	if docType == model.DocGPSPhoto {
		doc.GPSData = service.ExtractGPS(data)
	}

	if err := h.store.AddDocument(doc); err != nil {
		// Project was evicted between the lookup and the insert
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found"})
		return
	}

	logger.Info(ctx, "document uploaded",
		"document_id", doc.ID,
		"document_type", docType,
		"size", doc.FileSize,
		"gps_verified", doc.GPSData != nil,
	)
	c.JSON(http.StatusOK, model.UploadResult{
		Success:     true,
		DocumentID:  doc.ID,
		Locator:     doc.Locator,
		FileHash:    doc.FileHash,
		GPSVerified: doc.GPSData != nil,
		GPSData:     doc.GPSData,
	})
}

func (h *ProjectHandler) ListDocuments(c *gin.Context) {
	docs, err := h.store.ListDocuments(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// SubmitForApproval opens approval requests for every authority
func (h *ProjectHandler) SubmitForApproval(c *gin.Context) {
	projectID := c.Param("id")
	ctx := logger.WithProject(c.Request.Context(), projectID)

	opened, err := h.store.SubmitForApproval(projectID)
	var missing *service.MissingDocumentsError
	switch {
	case errors.As(err, &missing):
		c.JSON(http.StatusBadRequest, gin.H{"detail": missing.Error()})
		return
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found"})
		return
	case errors.Is(err, service.ErrAlreadyApproved):
		c.JSON(http.StatusConflict, gin.H{"detail": "Project already approved"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to submit project"})
		return
	}

	txHash, err := model.NewTxHash()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to submit project"})
		return
	}

	logger.Info(ctx, "project submitted for approval", "approvals", opened, "tx_hash", txHash)
	c.JSON(http.StatusOK, model.SubmitResult{Success: true, TxHash: txHash, Approvals: opened})
}
