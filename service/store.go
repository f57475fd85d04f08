package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyDecided    = errors.New("approval request already decided")
	ErrUsernameTaken     = errors.New("username already exists")
	ErrWalletTaken       = errors.New("wallet already registered")
	ErrAlreadyApproved   = errors.New("project already approved")
	ErrRejectionComments = errors.New("rejection requires comments")
)

// MissingDocumentsError lists the required document types a project lacks
type MissingDocumentsError struct {
	Missing []model.DocumentType
}

func (e *MissingDocumentsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	return "Missing required documents: " + strings.Join(names, ", ")
}

type authorityRecord struct {
	model.Authority
	passwordHash []byte
}

// Store is an in-memory store for the development API
type Store struct {
	mu          sync.RWMutex
	projects    map[string]*model.Project
	documents   map[string][]*model.Document // by project id
	approvals   map[string]*model.ApprovalRequest
	authorities map[string]*authorityRecord
	maxProjects int // Maximum projects to keep, 0 = unlimited
	now         func() time.Time
}

func NewStore(cfg *config.StoreConfig) *Store {
	maxProjects := cfg.MaxProjects
	if maxProjects < 0 {
		maxProjects = 0
	}
	slog.Info("project store initialized", "max_projects", maxProjects)
	return &Store{
		projects:    make(map[string]*model.Project),
		documents:   make(map[string][]*model.Document),
		approvals:   make(map[string]*model.ApprovalRequest),
		authorities: make(map[string]*authorityRecord),
		maxProjects: maxProjects,
		now:         time.Now,
	}
}

// CreateProject assigns an id and defaults and stores the project
func (s *Store) CreateProject(in *model.ProjectCreate) *model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &model.Project{
		ID:               uuid.New().String(),
		Name:             in.Name,
		Description:      in.Description,
		Category:         in.Category,
		Budget:           in.Budget,
		Status:           model.StatusActive,
		ApprovalStatus:   model.ApprovalDraft,
		ManagerAddress:   in.ManagerAddress,
		TxHash:           in.TxHash,
		ContractorName:   in.ContractorName,
		ContractorWallet: in.ContractorWallet,
		CreatedAt:        s.now(),
	}
	s.projects[p.ID] = p
	s.cleanupIfNeeded()

	cp := *p
	return &cp
}

func (s *Store) GetProject(id string) *model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ListProjects returns projects newest first
func (s *Store) ListProjects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.Stats{
		BudgetByCategory: make(map[string]float64),
		SpentByCategory:  make(map[string]float64),
	}
	for _, p := range s.projects {
		stats.TotalProjects++
		if p.Status == model.StatusActive {
			stats.ActiveProjects++
		}
		stats.TotalBudget += p.Budget
		stats.TotalAllocated += p.AllocatedFunds
		stats.TotalSpent += p.SpentFunds

		category := p.Category
		if category == "" {
			category = "Other"
		}
		stats.BudgetByCategory[category] += p.Budget
		stats.SpentByCategory[category] += p.SpentFunds
	}
	if stats.TotalBudget > 0 {
		stats.BudgetUtilization = stats.TotalSpent / stats.TotalBudget * 100
	}
	return stats
}

// AddDocument attaches a document to an existing project
func (s *Store) AddDocument(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[doc.ProjectID]; !ok {
		return ErrNotFound
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = s.now()
	}
	s.documents[doc.ProjectID] = append(s.documents[doc.ProjectID], doc)
	return nil
}

func (s *Store) ListDocuments(projectID string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}
	docs := s.documents[projectID]
	result := make([]model.Document, len(docs))
	for i, d := range docs {
		result[i] = *d
	}
	return result, nil
}

// missingDocuments must be called with lock held
func (s *Store) missingDocuments(projectID string) []model.DocumentType {
	have := make(map[model.DocumentType]bool)
	for _, d := range s.documents[projectID] {
		have[d.DocumentType] = true
	}
	var missing []model.DocumentType
	for _, req := range model.RequiredDocuments {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

// CreateAuthority registers a reviewer. Usernames and wallets are unique.
func (s *Store) CreateAuthority(a model.Authority, passwordHash []byte) (*model.Authority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.authorities {
		if existing.Username == a.Username {
			return nil, ErrUsernameTaken
		}
		if a.WalletAddress != "" && strings.EqualFold(existing.WalletAddress, a.WalletAddress) {
			return nil, ErrWalletTaken
		}
	}

	a.ID = uuid.New().String()
	a.ReviewsCount = 0
	s.authorities[a.ID] = &authorityRecord{Authority: a, passwordHash: passwordHash}

	// Open requests for submissions still awaiting review
	for _, p := range s.projects {
		if p.ApprovalStatus == string(model.DecisionPending) {
			s.openRequest(p.ID, a.ID)
		}
	}

	cp := a
	return &cp, nil
}

// FindAuthorityByUsername returns the authority and its password hash
func (s *Store) FindAuthorityByUsername(username string) (*model.Authority, []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.authorities {
		if rec.Username == username {
			a := rec.Authority
			return &a, rec.passwordHash
		}
	}
	return nil, nil
}

// ResolveAuthority accepts an authority id or a wallet address
func (s *Store) ResolveAuthority(idOrWallet string) *model.Authority {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.resolveAuthority(idOrWallet)
	if rec == nil {
		return nil
	}
	a := rec.Authority
	return &a
}

// resolveAuthority must be called with lock held
func (s *Store) resolveAuthority(idOrWallet string) *authorityRecord {
	if rec, ok := s.authorities[idOrWallet]; ok {
		return rec
	}
	for _, rec := range s.authorities {
		if rec.WalletAddress != "" && strings.EqualFold(rec.WalletAddress, idOrWallet) {
			return rec
		}
	}
	return nil
}

// openRequest must be called with lock held. It skips authorities that
// already have a pending request for the project.
func (s *Store) openRequest(projectID, authorityID string) bool {
	for _, a := range s.approvals {
		if a.ProjectID == projectID && a.AuthorityID == authorityID && a.Decision == model.DecisionPending {
			return false
		}
	}
	req := &model.ApprovalRequest{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		AuthorityID: authorityID,
		Decision:    model.DecisionPending,
		CreatedAt:   s.now(),
	}
	s.approvals[req.ID] = req
	return true
}

// SubmitForApproval opens a pending request for every authority. The project
// must carry every required document type.
func (s *Store) SubmitForApproval(projectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return 0, ErrNotFound
	}
	if p.ApprovalStatus == string(model.DecisionApproved) {
		return 0, ErrAlreadyApproved
	}
	if missing := s.missingDocuments(projectID); len(missing) > 0 {
		return 0, &MissingDocumentsError{Missing: missing}
	}

	opened := 0
	for id := range s.authorities {
		if s.openRequest(projectID, id) {
			opened++
		}
	}
	p.ApprovalStatus = string(model.DecisionPending)
	return opened, nil
}

// PendingFor lists undecided requests for an authority id or wallet, oldest
// first, with contractor identity redacted from the project snapshot.
func (s *Store) PendingFor(idOrWallet string) ([]model.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.resolveAuthority(idOrWallet)
	if rec == nil {
		return nil, ErrNotFound
	}

	result := []model.ApprovalRequest{}
	for _, a := range s.approvals {
		if a.AuthorityID != rec.ID || a.Decision != model.DecisionPending {
			continue
		}
		p, ok := s.projects[a.ProjectID]
		if ok && p.ApprovalStatus != string(model.DecisionPending) {
			// settled by another authority's decision
			continue
		}
		req := *a
		if ok {
			snapshot := p.Redacted()
			req.Project = &snapshot
		}
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Decide records a terminal decision exactly once. The first decision on a
// submission settles the project; requests still open for other authorities
// are then closed and report ErrAlreadyDecided until the project is
// resubmitted.
func (s *Store) Decide(approvalID string, decision model.Decision, comments string) (*model.ApprovalRequest, error) {
	if !decision.Terminal() {
		return nil, fmt.Errorf("invalid decision %q", decision)
	}
	if decision == model.DecisionRejected && strings.TrimSpace(comments) == "" {
		return nil, ErrRejectionComments
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.approvals[approvalID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Decision.Terminal() {
		return nil, ErrAlreadyDecided
	}
	p, hasProject := s.projects[a.ProjectID]
	if hasProject && p.ApprovalStatus != string(model.DecisionPending) {
		return nil, ErrAlreadyDecided
	}

	now := s.now()
	a.Decision = decision
	a.Comments = comments
	a.DecidedAt = &now

	if rec, ok := s.authorities[a.AuthorityID]; ok {
		rec.ReviewsCount++
	}
	if hasProject {
		p.ApprovalStatus = string(decision)
	}

	cp := *a
	return &cp, nil
}

// cleanupIfNeeded removes oldest projects if store exceeds maxProjects
// Must be called with lock held
func (s *Store) cleanupIfNeeded() {
	if s.maxProjects <= 0 {
		return // Unlimited
	}

	if len(s.projects) <= s.maxProjects {
		return
	}

	projects := make([]*model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})

	removeCount := len(projects) - s.maxProjects
	for i := 0; i < removeCount; i++ {
		id := projects[i].ID
		slog.Info("auto-cleaning old project",
			"project_id", id,
			"created_at", projects[i].CreatedAt,
		)
		delete(s.projects, id)
		delete(s.documents, id)
		for aid, a := range s.approvals {
			if a.ProjectID == id {
				delete(s.approvals, aid)
			}
		}
	}
}

// Count returns the number of projects in the store
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects)
}
