package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/AnTengye/civicfund/client"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
)

// Step is a position in the project creation wizard
type Step int

const (
	StepInfo Step = iota + 1
	StepDocuments
	StepSubmit
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepInfo:
		return "info"
	case StepDocuments:
		return "documents"
	case StepSubmit:
		return "submit"
	case StepDone:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ProjectAPI is the part of the API the wizard needs
type ProjectAPI interface {
	CreateProject(ctx context.Context, in *model.ProjectCreate) (*model.Project, error)
	UploadDocument(ctx context.Context, projectID string, docType model.DocumentType, fileName string, r io.Reader, uploadedBy string) (*model.UploadResult, error)
	SubmitForApproval(ctx context.Context, projectID string) (*model.SubmitResult, error)
}

// ProjectInfo is the step 1 form, kept as entered
type ProjectInfo struct {
	Name             string
	Description      string
	Category         string
	Budget           string
	ContractorName   string
	ContractorWallet string
}

// File is a document selected for upload
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// LocalFile selects a file on disk, opened only when uploaded
func LocalFile(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesFile selects in-memory content under name
func BytesFile(name string, data []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Documents is the step 2 selection
type Documents struct {
	Proposal   *File
	GPSPhotos  []File
	LabReports []File
	Invoices   []File
}

// Wizard walks a manager through Info -> Documents -> Submit. Going back
// keeps everything entered so far.
type Wizard struct {
	api     ProjectAPI
	manager string
	notify  Notifier

	mu          sync.Mutex
	step        Step
	info        ProjectInfo
	docs        Documents
	projectID   string
	createdFrom ProjectInfo
	uploads     []model.UploadResult
	busy        bool
}

// NewWizard starts a wizard for the manager's account address
func NewWizard(api ProjectAPI, manager string, notify Notifier) *Wizard {
	return &Wizard{
		api:     api,
		manager: manager,
		notify:  notifierOrDefault(notify),
		step:    StepInfo,
		info:    ProjectInfo{Category: model.DefaultCategory},
	}
}

// Step returns the current step
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// ProjectID is empty until step 1 has been confirmed by the server
func (w *Wizard) ProjectID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projectID
}

// Info returns the step 1 form as last entered
func (w *Wizard) Info() ProjectInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info
}

// Uploads returns the results of the last successful document step
func (w *Wizard) Uploads() []model.UploadResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.UploadResult, len(w.uploads))
	copy(out, w.uploads)
	return out
}

// SetInfo replaces the step 1 form; only allowed at StepInfo
func (w *Wizard) SetInfo(info ProjectInfo) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepInfo {
		return ErrWrongStep
	}
	w.info = info
	return nil
}

// SetDocuments replaces the step 2 selection; only allowed at StepDocuments
func (w *Wizard) SetDocuments(docs Documents) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepDocuments {
		return ErrWrongStep
	}
	w.docs = docs
	return nil
}

// Back moves one step back without discarding data
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case StepDocuments, StepSubmit:
		w.step--
		return nil
	}
	return ErrWrongStep
}

// begin marks the wizard busy if it is at step; callers must call end
func (w *Wizard) begin(step Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.step != step {
		return ErrWrongStep
	}
	w.busy = true
	return nil
}

func (w *Wizard) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// ParseBudget accepts a positive decimal amount
func ParseBudget(s string) (float64, error) {
	budget, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return 0, invalid(MsgBudgetNumber)
	}
	if budget <= 0 {
		return 0, invalid(MsgBudgetPositive)
	}
	return budget, nil
}

func validateInfo(info ProjectInfo) (float64, error) {
	if strings.TrimSpace(info.Name) == "" ||
		strings.TrimSpace(info.Budget) == "" ||
		strings.TrimSpace(info.ContractorName) == "" {
		return 0, invalid(MsgRequiredFields)
	}
	if info.Category != "" && !model.IsValidCategory(info.Category) {
		return 0, invalid(MsgInvalidCategory)
	}
	return ParseBudget(info.Budget)
}

// SubmitInfo validates step 1, creates the project and advances to step 2.
// Resubmitting unchanged info after going back reuses the created project.
func (w *Wizard) SubmitInfo(ctx context.Context) error {
	if err := w.begin(StepInfo); err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	info := w.info
	reuse := w.projectID != "" && info == w.createdFrom
	w.mu.Unlock()

	budget, err := validateInfo(info)
	if err != nil {
		w.notify.Error(ctx, err.Error())
		return err
	}

	if reuse {
		w.mu.Lock()
		w.step = StepDocuments
		w.mu.Unlock()
		return nil
	}

	category := info.Category
	if category == "" {
		category = model.DefaultCategory
	}
	contractorWallet := strings.TrimSpace(info.ContractorWallet)
	if contractorWallet == "" {
		contractorWallet = w.manager
	}
	txHash, err := model.NewTxHash()
	if err != nil {
		return err
	}

	project, err := w.api.CreateProject(ctx, &model.ProjectCreate{
		Name:             strings.TrimSpace(info.Name),
		Description:      info.Description,
		Category:         category,
		Budget:           budget,
		ManagerAddress:   w.manager,
		TxHash:           txHash,
		ContractorName:   strings.TrimSpace(info.ContractorName),
		ContractorWallet: contractorWallet,
	})
	if err != nil {
		w.notify.Error(ctx, MsgCreateFailed)
		return &OpError{Message: MsgCreateFailed, Err: err}
	}

	w.mu.Lock()
	w.projectID = project.ID
	w.createdFrom = info
	w.step = StepDocuments
	w.mu.Unlock()

	logger.Info(logger.WithProject(ctx, project.ID), "project created", "name", project.Name, "budget", budget)
	w.notify.Success(ctx, "Project created! Now upload documents.")
	return nil
}

type pendingUpload struct {
	docType model.DocumentType
	file    File
}

// SubmitDocuments uploads the selection one file at a time, proposal first,
// then GPS photos, lab reports and invoices. The first failure aborts the
// step; nothing is retried.
func (w *Wizard) SubmitDocuments(ctx context.Context) ([]model.UploadResult, error) {
	if err := w.begin(StepDocuments); err != nil {
		return nil, err
	}
	defer w.end()

	w.mu.Lock()
	docs := w.docs
	projectID := w.projectID
	w.mu.Unlock()

	if docs.Proposal == nil {
		w.notify.Error(ctx, MsgProposalRequired)
		return nil, invalid(MsgProposalRequired)
	}
	if len(docs.GPSPhotos) == 0 {
		w.notify.Error(ctx, MsgGPSPhotoRequired)
		return nil, invalid(MsgGPSPhotoRequired)
	}

	queue := []pendingUpload{{model.DocProposal, *docs.Proposal}}
	for _, f := range docs.GPSPhotos {
		queue = append(queue, pendingUpload{model.DocGPSPhoto, f})
	}
	for _, f := range docs.LabReports {
		queue = append(queue, pendingUpload{model.DocLabReport, f})
	}
	for _, f := range docs.Invoices {
		queue = append(queue, pendingUpload{model.DocInvoice, f})
	}

	ctx = logger.WithProject(ctx, projectID)
	results := make([]model.UploadResult, 0, len(queue))
	for _, u := range queue {
		switch u.docType {
		case model.DocProposal:
			w.notify.Info(ctx, "Uploading proposal...")
		case model.DocGPSPhoto:
			w.notify.Info(ctx, "Uploading GPS photo...")
		}

		res, err := w.upload(ctx, projectID, u)
		if err != nil {
			logger.Warn(ctx, "document upload failed", "file", u.file.Name, "document_type", u.docType, "error", err)
			w.notify.Error(ctx, MsgUploadFailed)
			return nil, &OpError{Message: MsgUploadFailed, Err: err}
		}
		if res.GPSData != nil {
			w.notify.Success(ctx, fmt.Sprintf("GPS: %.6f, %.6f", res.GPSData.Latitude, res.GPSData.Longitude))
		}
		results = append(results, *res)
	}

	w.mu.Lock()
	w.uploads = results
	w.step = StepSubmit
	w.mu.Unlock()

	w.notify.Success(ctx, "All documents uploaded!")
	return results, nil
}

func (w *Wizard) upload(ctx context.Context, projectID string, u pendingUpload) (*model.UploadResult, error) {
	rc, err := u.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.file.Name, err)
	}
	defer rc.Close()
	return w.api.UploadDocument(ctx, projectID, u.docType, u.file.Name, rc, w.manager)
}

// Submit asks the API to open approval requests for the project. Missing
// required documents are reported by the server and surfaced as-is.
func (w *Wizard) Submit(ctx context.Context) (*model.SubmitResult, error) {
	if err := w.begin(StepSubmit); err != nil {
		return nil, err
	}
	defer w.end()

	projectID := w.ProjectID()
	ctx = logger.WithProject(ctx, projectID)

	res, err := w.api.SubmitForApproval(ctx, projectID)
	if err != nil {
		msg := client.Detail(err)
		if msg == "" {
			msg = MsgSubmitFailed
		}
		w.notify.Error(ctx, msg)
		return nil, &OpError{Message: msg, Err: err}
	}

	w.mu.Lock()
	w.step = StepDone
	w.mu.Unlock()

	logger.Info(ctx, "project submitted for approval", "tx_hash", res.TxHash, "approvals", res.Approvals)
	w.notify.Success(ctx, "Project submitted for approval!")
	return res, nil
}
