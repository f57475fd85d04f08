package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
)

// ApprovalAPI is the part of the API the reviewer loop needs
type ApprovalAPI interface {
	PendingApprovals(ctx context.Context, authorityID string) ([]model.ApprovalRequest, error)
	Decide(ctx context.Context, approvalID string, decision model.Decision, comments string) error
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
}

// Reviewer is the list-and-decide loop for one authority. At most one
// request is selected at a time and at most one decision is in flight.
type Reviewer struct {
	api    ApprovalAPI
	handle *AuthorityHandle
	notify Notifier

	mu       sync.Mutex
	pending  []model.ApprovalRequest
	selected string
	gen      uint64
	deciding bool
}

// NewReviewer starts a review loop for the authority behind handle
func NewReviewer(api ApprovalAPI, handle *AuthorityHandle, notify Notifier) *Reviewer {
	return &Reviewer{
		api:    api,
		handle: handle,
		notify: notifierOrDefault(notify),
	}
}

// Handle returns the authority the loop runs as
func (r *Reviewer) Handle() *AuthorityHandle {
	return r.handle
}

func (r *Reviewer) ctx(ctx context.Context) context.Context {
	return logger.WithAuthority(ctx, r.handle.ID)
}

// Refresh re-fetches the pending list. If another Refresh starts before this
// one's response arrives, this response is dropped and ErrStale returned.
func (r *Reviewer) Refresh(ctx context.Context) ([]model.ApprovalRequest, error) {
	ctx = r.ctx(ctx)

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	approvals, err := r.api.PendingApprovals(ctx, r.handle.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		logger.Debug(ctx, "dropping stale pending list", "generation", gen, "current", r.gen)
		return nil, ErrStale
	}
	if err != nil {
		r.notify.Error(ctx, MsgApprovalsFailed)
		return nil, &OpError{Message: MsgApprovalsFailed, Err: err}
	}

	r.pending = approvals
	if r.selected != "" && r.indexOf(r.selected) < 0 {
		r.selected = ""
	}
	return r.snapshot(), nil
}

// Pending returns the last fetched list
func (r *Reviewer) Pending() []model.ApprovalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Select toggles id open for decision. Opening one request closes any
// other. It reports whether id is open afterwards.
func (r *Reviewer) Select(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(id) < 0 {
		return false, ErrUnknownApproval
	}
	if r.selected == id {
		r.selected = ""
		return false, nil
	}
	r.selected = id
	return true, nil
}

// Selected returns the open request, or nil
func (r *Reviewer) Selected() *model.ApprovalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(r.selected)
	if i < 0 {
		return nil
	}
	a := r.pending[i]
	return &a
}

// Decide sends a decision for the selected request. Rejections need a
// non-blank comment. On success the request leaves the local list, the
// selection is cleared and the pending list re-fetched; on failure nothing
// changes locally.
func (r *Reviewer) Decide(ctx context.Context, decision model.Decision, comments string) error {
	ctx = r.ctx(ctx)

	r.mu.Lock()
	if r.selected == "" {
		r.mu.Unlock()
		return ErrNoSelection
	}
	if r.deciding {
		r.mu.Unlock()
		return ErrBusy
	}
	if !decision.Terminal() {
		r.mu.Unlock()
		r.notify.Error(ctx, MsgInvalidDecision)
		return invalid(MsgInvalidDecision)
	}
	if decision == model.DecisionRejected && strings.TrimSpace(comments) == "" {
		r.mu.Unlock()
		r.notify.Error(ctx, MsgRejectionReason)
		return invalid(MsgRejectionReason)
	}
	id := r.selected
	r.deciding = true
	r.mu.Unlock()

	err := r.api.Decide(ctx, id, decision, comments)

	r.mu.Lock()
	r.deciding = false
	if err != nil {
		r.mu.Unlock()
		logger.Warn(ctx, "decision failed", "approval_id", id, "decision", decision, "error", err)
		r.notify.Error(ctx, MsgDecisionFailed)
		return &OpError{Message: MsgDecisionFailed, Err: err}
	}
	if r.selected == id {
		r.selected = ""
	}
	if i := r.indexOf(id); i >= 0 {
		r.pending = append(r.pending[:i:i], r.pending[i+1:]...)
	}
	r.mu.Unlock()

	logger.Info(ctx, "decision recorded", "approval_id", id, "decision", decision)
	r.notify.Success(ctx, fmt.Sprintf("Project %s successfully!", strings.ToLower(string(decision))))

	// The decision stands even if the re-fetch fails; Refresh reports that itself.
	r.Refresh(ctx)
	return nil
}

// Documents lists a project's documents without touching approval state
func (r *Reviewer) Documents(ctx context.Context, projectID string) ([]model.Document, error) {
	ctx = logger.WithProject(r.ctx(ctx), projectID)

	docs, err := r.api.ListDocuments(ctx, projectID)
	if err != nil {
		r.notify.Error(ctx, MsgDocumentsFailed)
		return nil, &OpError{Message: MsgDocumentsFailed, Err: err}
	}
	return docs, nil
}

// indexOf must be called with mu held
func (r *Reviewer) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range r.pending {
		if r.pending[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshot must be called with mu held
func (r *Reviewer) snapshot() []model.ApprovalRequest {
	out := make([]model.ApprovalRequest, len(r.pending))
	copy(out, r.pending)
	return out
}
