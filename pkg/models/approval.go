package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalDecision is the state of one approval request.
type ApprovalDecision string

const (
	ApprovalPending  ApprovalDecision = "pending"
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalRejected ApprovalDecision = "rejected"
)

// WorkflowApproval is one approver's pending decision for an execution
// parked at an approval node. One record is created per required approver
// when the node is reached.
type WorkflowApproval struct {
	ID           string           `json:"id"`
	ExecutionID  string           `json:"execution_id" validate:"required"`
	NodeID       string           `json:"node_id"      validate:"required"`
	RequiredFrom string           `json:"required_from"`
	Subject      string           `json:"subject,omitempty"`
	Content      string           `json:"content,omitempty"`
	ApprovalData map[string]any   `json:"approval_data,omitempty"`
	Decision     ApprovalDecision `json:"decision"`
	DecidedBy    string           `json:"decided_by,omitempty"`
	DecidedAt    *time.Time       `json:"decided_at,omitempty"`
	ExpiresAt    time.Time        `json:"expires_at"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NewApproval creates a pending approval request expiring after the given
// timeout.
func NewApproval(executionID, nodeID, requiredFrom string, cfg *ApprovalConfig, snapshot map[string]any) *WorkflowApproval {
	now := time.Now().UTC()

	timeout := time.Duration(cfg.TimeoutHours) * time.Hour
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}

	return &WorkflowApproval{
		ID:           "appr-" + uuid.New().String()[:8],
		ExecutionID:  executionID,
		NodeID:       nodeID,
		RequiredFrom: requiredFrom,
		Subject:      cfg.Subject,
		Content:      cfg.Content,
		ApprovalData: snapshot,
		Decision:     ApprovalPending,
		ExpiresAt:    now.Add(timeout),
		CreatedAt:    now,
	}
}

// Expired reports whether a still-pending approval has passed its deadline.
func (a *WorkflowApproval) Expired(now time.Time) bool {
	return a.Decision == ApprovalPending && now.After(a.ExpiresAt)
}
