package protocol

import "context"

// Notification kinds emitted by the engine according to a workflow's
// notification settings.
const (
	NotificationCompletion  = "completion"
	NotificationFailure     = "failure"
	NotificationStepFailure = "step_failure"
	NotificationApproval    = "approval_requested"
)

// Notification describes one outbound notification about an execution.
type Notification struct {
	Kind         string         `json:"kind"`
	WorkflowID   string         `json:"workflow_id"`
	WorkflowName string         `json:"workflow_name,omitempty"`
	ExecutionID  string         `json:"execution_id"`
	NodeID       string         `json:"node_id,omitempty"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
}

// Notifier delivers notifications. Delivery is best effort; the engine logs
// and continues when Notify fails.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}
