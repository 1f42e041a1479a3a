package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

const (
	executionsDir = "executions"
	logsDir       = "logs"
)

// ExecutionRepository stores execution records, one JSON file per execution.
type ExecutionRepository struct {
	store *store
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.WorkflowExecution) error {
	if err := r.store.write(executionsDir, execution.ID, execution); err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	found, err := r.store.read(executionsDir, id, &execution)
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", id, err)
	}

	if !found {
		return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) PendingExecutions(ctx context.Context) ([]*models.WorkflowExecution, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.WorkflowExecution, 0)

	for _, execution := range all {
		if execution.Status == models.ExecutionStatusPending {
			pending = append(pending, execution)
		}
	}

	return pending, nil
}

func (r *ExecutionRepository) RecentExecutions(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.WorkflowExecution, 0)

	for _, execution := range all {
		if execution.WorkflowID == workflowID {
			matching = append(matching, execution)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	if limit > 0 && len(matching) > limit {
		matching = matching[:limit]
	}

	return matching, nil
}

func (r *ExecutionRepository) all(ctx context.Context) ([]*models.WorkflowExecution, error) {
	ids, err := r.store.ids(executionsDir)
	if err != nil {
		return nil, persistence.NewStoreError("Executions", "", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.ExecutionByID(ctx, id)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

// LogRepository stores the append-only audit trail, one file per entry under
// logs/<execution_id>/.
type LogRepository struct {
	store *store
}

func (r *LogRepository) AppendLog(_ context.Context, entry *models.ExecutionLog) error {
	dir := filepath.Join(logsDir, entry.ExecutionID)

	if err := r.store.write(dir, entry.ID, entry); err != nil {
		return persistence.NewStoreError("AppendLog", entry.ID, err)
	}

	return nil
}

func (r *LogRepository) LogsByExecution(_ context.Context, executionID string) ([]*models.ExecutionLog, error) {
	dir := filepath.Join(logsDir, executionID)

	ids, err := r.store.ids(dir)
	if err != nil {
		return nil, persistence.NewStoreError("LogsByExecution", executionID, err)
	}

	entries := make([]*models.ExecutionLog, 0, len(ids))

	for _, id := range ids {
		var entry models.ExecutionLog

		found, err := r.store.read(dir, id, &entry)
		if err != nil {
			return nil, persistence.NewStoreError("LogsByExecution", executionID, err)
		}

		if found {
			entries = append(entries, &entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID < entries[j].ID
		}

		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return entries, nil
}
