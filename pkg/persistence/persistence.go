// Package persistence defines the storage contracts the engine, queue and
// scheduler depend on. Implementations must guarantee atomic single-record
// writes: an execution's status, current node and runtime data are always
// persisted together.
package persistence

import (
	"context"
	"time"

	"github.com/veilstream/conduit/pkg/models"
)

type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// PendingExecutions returns executions awaiting dispatch, used to
	// rebuild the in-memory job queue after a restart.
	PendingExecutions(ctx context.Context) ([]*models.WorkflowExecution, error)

	// RecentExecutions returns the newest executions of one workflow,
	// most recent first.
	RecentExecutions(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error)
}

type LogRepository interface {
	// AppendLog adds one audit trail entry. Entries are append-only.
	AppendLog(ctx context.Context, entry *models.ExecutionLog) error
	LogsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)
}

type ScheduleRepository interface {
	SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error
	ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error)
	ActiveSchedules(ctx context.Context) ([]*models.WorkflowSchedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

type ApprovalRepository interface {
	SaveApproval(ctx context.Context, approval *models.WorkflowApproval) error
	ApprovalsByExecution(ctx context.Context, executionID, nodeID string) ([]*models.WorkflowApproval, error)

	// PendingApprovalsBefore returns pending approvals whose deadline has
	// passed at the given time.
	PendingApprovalsBefore(ctx context.Context, deadline time.Time) ([]*models.WorkflowApproval, error)
}

// Persistence aggregates the repositories behind one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	LogRepository() LogRepository
	ScheduleRepository() ScheduleRepository
	ApprovalRepository() ApprovalRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
