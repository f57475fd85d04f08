package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Project is a municipal project tracked by the dashboard
type Project struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Budget           float64   `json:"budget"`
	AllocatedFunds   float64   `json:"allocated_funds"`
	SpentFunds       float64   `json:"spent_funds"`
	Status           string    `json:"status"`          // Active, Completed
	ApprovalStatus   string    `json:"approval_status"` // Draft, Pending, Approved, Rejected
	ManagerAddress   string    `json:"manager_address"`
	TxHash           string    `json:"tx_hash,omitempty"`
	ContractorName   string    `json:"contractor_name,omitempty"`
	ContractorWallet string    `json:"contractor_wallet,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProjectCreate is the body of POST /projects
type ProjectCreate struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Category         string  `json:"category"`
	Budget           float64 `json:"budget"`
	ManagerAddress   string  `json:"manager_address"`
	TxHash           string  `json:"tx_hash,omitempty"`
	ContractorName   string  `json:"contractor_name,omitempty"`
	ContractorWallet string  `json:"contractor_wallet,omitempty"`
}

// Project status constants
const (
	StatusActive    = "Active"
	StatusCompleted = "Completed"
)

// Project approval status constants
const (
	ApprovalDraft = "Draft"
)

// Placeholders shown to reviewers instead of contractor identity
const (
	RedactedName   = "[REDACTED]"
	RedactedWallet = "[HIDDEN]"
)

const DefaultCategory = "Infrastructure"

// Categories lists the fixed project category labels
var Categories = []string{
	"Infrastructure",
	"Education",
	"Healthcare",
	"Environment",
	"Transportation",
	"Public Safety",
	"Community Services",
	"Other",
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Redacted returns a copy of p with contractor identity hidden
func (p Project) Redacted() Project {
	p.ContractorName = RedactedName
	p.ContractorWallet = RedactedWallet
	return p
}

// Stats is the aggregate view returned by GET /stats
type Stats struct {
	TotalProjects     int                `json:"total_projects"`
	ActiveProjects    int                `json:"active_projects"`
	TotalBudget       float64            `json:"total_budget"`
	TotalAllocated    float64            `json:"total_allocated"`
	TotalSpent        float64            `json:"total_spent"`
	BudgetUtilization float64            `json:"budget_utilization"`
	BudgetByCategory  map[string]float64 `json:"budget_by_project_category"`
	SpentByCategory   map[string]float64 `json:"spent_by_project_category"`
}

// NewTxHash returns a random 32-byte hex reference in ledger transaction form
func NewTxHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate tx hash: %w", err)
	}
	return "0x" + hex.EncodeToString(b), nil
}
