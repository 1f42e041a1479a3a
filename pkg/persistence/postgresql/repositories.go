package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

// WorkflowRepository stores workflow definitions as JSONB documents.
type WorkflowRepository struct {
	db *sql.DB
}

func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT definition FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, persistence.NewStoreError("Workflows", "", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewStoreError("Workflows", "", err)
		}

		var workflow models.Workflow
		if err := json.Unmarshal(raw, &workflow); err != nil {
			return nil, persistence.NewStoreError("Workflows", "", err)
		}

		workflows = append(workflows, &workflow)
	}

	return workflows, rows.Err()
}

func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx, `SELECT definition FROM workflows WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(raw, &workflow); err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	raw, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, status, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at`,
		workflow.ID, workflow.Status, raw, workflow.CreatedAt, time.Now().UTC())
	if err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("DeleteWorkflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("DeleteWorkflow", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// ExecutionRepository stores execution records. The full record is one JSONB
// document so the engine's checkpoint (status, current node, runtime data)
// is a single atomic row write.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	raw, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, status, priority, scheduled_at, created_at, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			scheduled_at = EXCLUDED.scheduled_at,
			record = EXCLUDED.record`,
		execution.ID, execution.WorkflowID, execution.Status, execution.Priority,
		execution.ScheduledAt, execution.CreatedAt, raw)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx, `SELECT record FROM workflow_executions WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", id, err)
	}

	var execution models.WorkflowExecution
	if err := json.Unmarshal(raw, &execution); err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", id, err)
	}

	return &execution, nil
}

func (r *ExecutionRepository) PendingExecutions(ctx context.Context) ([]*models.WorkflowExecution, error) {
	return r.query(ctx, `
		SELECT record FROM workflow_executions
		WHERE status = 'pending'
		ORDER BY priority DESC, scheduled_at ASC`)
}

func (r *ExecutionRepository) RecentExecutions(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = 20
	}

	return r.query(ctx, `
		SELECT record FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, workflowID, limit)
}

func (r *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("Executions", "", err)
	}
	defer rows.Close()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewStoreError("Executions", "", err)
		}

		var execution models.WorkflowExecution
		if err := json.Unmarshal(raw, &execution); err != nil {
			return nil, persistence.NewStoreError("Executions", "", err)
		}

		executions = append(executions, &execution)
	}

	return executions, rows.Err()
}

// LogRepository stores the append-only audit trail.
type LogRepository struct {
	db *sql.DB
}

func (r *LogRepository) AppendLog(ctx context.Context, entry *models.ExecutionLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return persistence.NewStoreError("AppendLog", entry.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_execution_logs (id, execution_id, node_id, level, message, details, timestamp)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		entry.ID, entry.ExecutionID, entry.NodeID, entry.Level, entry.Message, details, entry.Timestamp)
	if err != nil {
		return persistence.NewStoreError("AppendLog", entry.ID, err)
	}

	return nil
}

func (r *LogRepository) LogsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, COALESCE(node_id, ''), level, message, details, timestamp
		FROM workflow_execution_logs
		WHERE execution_id = $1
		ORDER BY timestamp, id`, executionID)
	if err != nil {
		return nil, persistence.NewStoreError("LogsByExecution", executionID, err)
	}
	defer rows.Close()

	entries := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var entry models.ExecutionLog

		var details []byte

		err := rows.Scan(&entry.ID, &entry.ExecutionID, &entry.NodeID, &entry.Level, &entry.Message, &details, &entry.Timestamp)
		if err != nil {
			return nil, persistence.NewStoreError("LogsByExecution", executionID, err)
		}

		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, persistence.NewStoreError("LogsByExecution", executionID, err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// ScheduleRepository stores workflow schedules.
type ScheduleRepository struct {
	db *sql.DB
}

func (r *ScheduleRepository) SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error {
	raw, err := json.Marshal(schedule)
	if err != nil {
		return persistence.NewStoreError("SaveSchedule", schedule.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_schedules (id, workflow_id, active, next_run_at, record)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			next_run_at = EXCLUDED.next_run_at,
			record = EXCLUDED.record`,
		schedule.ID, schedule.WorkflowID, schedule.Active, schedule.NextRunAt, raw)
	if err != nil {
		return persistence.NewStoreError("SaveSchedule", schedule.ID, err)
	}

	return nil
}

func (r *ScheduleRepository) ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx, `SELECT record FROM workflow_schedules WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("ScheduleByID", id, persistence.ErrScheduleNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("ScheduleByID", id, err)
	}

	var schedule models.WorkflowSchedule
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return nil, persistence.NewStoreError("ScheduleByID", id, err)
	}

	return &schedule, nil
}

func (r *ScheduleRepository) ActiveSchedules(ctx context.Context) ([]*models.WorkflowSchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT record FROM workflow_schedules
		WHERE active = TRUE
		ORDER BY next_run_at`)
	if err != nil {
		return nil, persistence.NewStoreError("ActiveSchedules", "", err)
	}
	defer rows.Close()

	schedules := make([]*models.WorkflowSchedule, 0)

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewStoreError("ActiveSchedules", "", err)
		}

		var schedule models.WorkflowSchedule
		if err := json.Unmarshal(raw, &schedule); err != nil {
			return nil, persistence.NewStoreError("ActiveSchedules", "", err)
		}

		schedules = append(schedules, &schedule)
	}

	return schedules, rows.Err()
}

func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_schedules WHERE id = $1`, id)
	if err != nil {
		return persistence.NewStoreError("DeleteSchedule", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("DeleteSchedule", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("DeleteSchedule", id, persistence.ErrScheduleNotFound)
	}

	return nil
}

// ApprovalRepository stores approval requests.
type ApprovalRepository struct {
	db *sql.DB
}

func (r *ApprovalRepository) SaveApproval(ctx context.Context, approval *models.WorkflowApproval) error {
	raw, err := json.Marshal(approval)
	if err != nil {
		return persistence.NewStoreError("SaveApproval", approval.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_approvals (id, execution_id, node_id, decision, expires_at, record)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			decision = EXCLUDED.decision,
			expires_at = EXCLUDED.expires_at,
			record = EXCLUDED.record`,
		approval.ID, approval.ExecutionID, approval.NodeID, approval.Decision, approval.ExpiresAt, raw)
	if err != nil {
		return persistence.NewStoreError("SaveApproval", approval.ID, err)
	}

	return nil
}

func (r *ApprovalRepository) ApprovalsByExecution(ctx context.Context, executionID, nodeID string) ([]*models.WorkflowApproval, error) {
	return r.query(ctx, `
		SELECT record FROM workflow_approvals
		WHERE execution_id = $1 AND ($2 = '' OR node_id = $2)`, executionID, nodeID)
}

func (r *ApprovalRepository) PendingApprovalsBefore(ctx context.Context, deadline time.Time) ([]*models.WorkflowApproval, error) {
	return r.query(ctx, `
		SELECT record FROM workflow_approvals
		WHERE decision = 'pending' AND expires_at < $1`, deadline)
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowApproval, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("Approvals", "", err)
	}
	defer rows.Close()

	approvals := make([]*models.WorkflowApproval, 0)

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewStoreError("Approvals", "", err)
		}

		var approval models.WorkflowApproval
		if err := json.Unmarshal(raw, &approval); err != nil {
			return nil, persistence.NewStoreError("Approvals", "", err)
		}

		approvals = append(approvals, &approval)
	}

	return approvals, rows.Err()
}
