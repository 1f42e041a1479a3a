package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusPaused    ExecutionStatus = "paused"
)

// Terminal reports whether the status is final. Terminal executions are
// never resumed or re-dispatched.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Priority orders pending executions in the job queue. Higher dispatches
// first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// ParsePriority maps a priority name to its value, defaulting to normal.
func ParsePriority(name string) Priority {
	switch name {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// Step result statuses.
const (
	StepStatusSuccess = "success"
	StepStatusFailure = "failure"
	StepStatusPending = "pending"
	StepStatusSkipped = "skipped"
)

// StepResult is the descriptor a node processor produces, stored under the
// node's name in the execution's step results.
type StepResult struct {
	Status   string         `json:"status"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	EndedAt  time.Time      `json:"ended_at"`
}

// Succeeded reports whether the step finished successfully.
func (r *StepResult) Succeeded() bool {
	return r != nil && r.Status == StepStatusSuccess
}

// WorkflowExecution is one run of a workflow against specific input data.
// The engine owns the record exclusively from admission until a terminal
// status; it checkpoints CurrentNodeID and RuntimeData at every node
// transition for crash recovery.
type WorkflowExecution struct {
	ID            string                 `json:"id"`
	WorkflowID    string                 `json:"workflow_id" validate:"required"`
	Status        ExecutionStatus        `json:"status"`
	Priority      Priority               `json:"priority"`
	ScheduledAt   time.Time              `json:"scheduled_at"`
	TriggeredBy   string                 `json:"triggered_by,omitempty"`
	TriggerType   string                 `json:"trigger_type,omitempty"`
	InputData     map[string]any         `json:"input_data,omitempty"`
	RuntimeData   map[string]any         `json:"runtime_data,omitempty"`
	CurrentNodeID string                 `json:"current_node_id,omitempty"`
	StepResults   map[string]*StepResult `json:"step_results,omitempty"`
	Output        map[string]any         `json:"output,omitempty"`
	ErrorDetails  string                 `json:"error_details,omitempty"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// NewExecution creates a pending execution for the given workflow.
func NewExecution(workflowID string, input map[string]any, triggeredBy, triggerType string) *WorkflowExecution {
	now := time.Now().UTC()

	return &WorkflowExecution{
		ID:          "exec-" + uuid.New().String()[:8],
		WorkflowID:  workflowID,
		Status:      ExecutionStatusPending,
		Priority:    PriorityNormal,
		ScheduledAt: now,
		TriggeredBy: triggeredBy,
		TriggerType: triggerType,
		InputData:   input,
		RuntimeData: make(map[string]any),
		StepResults: make(map[string]*StepResult),
		CreatedAt:   now,
	}
}

// LogLevel classifies execution log entries.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// ExecutionLog is one append-only audit trail entry. NodeID is empty for
// execution-level events.
type ExecutionLog struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id,omitempty"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewExecutionLog creates a log entry stamped with the current time.
func NewExecutionLog(executionID, nodeID string, level LogLevel, message string, details map[string]any) *ExecutionLog {
	return &ExecutionLog{
		ID:          "log-" + uuid.New().String()[:8],
		ExecutionID: executionID,
		NodeID:      nodeID,
		Level:       level,
		Message:     message,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	}
}
