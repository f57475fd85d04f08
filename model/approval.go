package model

import (
	"time"
)

// Decision is the state of an approval request
type Decision string

const (
	DecisionPending  Decision = "Pending"
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// Terminal reports whether the decision can no longer change
func (d Decision) Terminal() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// ApprovalRequest links a submitted project to a reviewing authority
type ApprovalRequest struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	AuthorityID string     `json:"authority_id"`
	Decision    Decision   `json:"decision"`
	Comments    string     `json:"comments,omitempty"`
	Project     *Project   `json:"project,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// DecisionRequest is the body of POST /approvals/{id}/decide
type DecisionRequest struct {
	Decision Decision `json:"decision"`
	Comments string   `json:"comments"`
}

// SubmitResult is the response of POST /projects/{id}/submit-approval
type SubmitResult struct {
	Success   bool   `json:"success"`
	TxHash    string `json:"tx_hash"`
	Approvals int    `json:"approvals"`
}
