package file

import (
	"context"
	"time"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

const approvalsDir = "approvals"

// ApprovalRepository stores approval requests, one JSON file per approval.
type ApprovalRepository struct {
	store *store
}

func (r *ApprovalRepository) SaveApproval(_ context.Context, approval *models.WorkflowApproval) error {
	if err := r.store.write(approvalsDir, approval.ID, approval); err != nil {
		return persistence.NewStoreError("SaveApproval", approval.ID, err)
	}

	return nil
}

func (r *ApprovalRepository) ApprovalsByExecution(ctx context.Context, executionID, nodeID string) ([]*models.WorkflowApproval, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.WorkflowApproval, 0)

	for _, approval := range all {
		if approval.ExecutionID != executionID {
			continue
		}

		if nodeID != "" && approval.NodeID != nodeID {
			continue
		}

		matching = append(matching, approval)
	}

	return matching, nil
}

func (r *ApprovalRepository) PendingApprovalsBefore(ctx context.Context, deadline time.Time) ([]*models.WorkflowApproval, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	expired := make([]*models.WorkflowApproval, 0)

	for _, approval := range all {
		if approval.Decision == models.ApprovalPending && approval.ExpiresAt.Before(deadline) {
			expired = append(expired, approval)
		}
	}

	return expired, nil
}

func (r *ApprovalRepository) all(_ context.Context) ([]*models.WorkflowApproval, error) {
	ids, err := r.store.ids(approvalsDir)
	if err != nil {
		return nil, persistence.NewStoreError("Approvals", "", err)
	}

	approvals := make([]*models.WorkflowApproval, 0, len(ids))

	for _, id := range ids {
		var approval models.WorkflowApproval

		found, err := r.store.read(approvalsDir, id, &approval)
		if err != nil {
			return nil, persistence.NewStoreError("Approvals", id, err)
		}

		if found {
			approvals = append(approvals, &approval)
		}
	}

	return approvals, nil
}
