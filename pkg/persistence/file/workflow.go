package file

import (
	"context"
	"fmt"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository stores workflow definitions, one JSON file per workflow.
type WorkflowRepository struct {
	store *store
}

func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := r.store.ids(workflowsDir)
	if err != nil {
		return nil, persistence.NewStoreError("Workflows", "", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := r.store.read(workflowsDir, id, &workflow)
	if err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		return persistence.NewStoreError("SaveWorkflow", "", fmt.Errorf("workflow has no ID"))
	}

	if err := r.store.write(workflowsDir, workflow.ID, workflow); err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) DeleteWorkflow(_ context.Context, id string) error {
	found, err := r.store.remove(workflowsDir, id)
	if err != nil {
		return persistence.NewStoreError("DeleteWorkflow", id, err)
	}

	if !found {
		return persistence.NewStoreError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}
