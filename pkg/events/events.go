// Package events defines the lifecycle events published while executions
// run. Observers (notifiers, audit sinks, metrics) subscribe to these on the
// event bus; publishing is fire-and-forget and never fails a run.
package events

import (
	"time"
)

type EventType string

// Topic is the event bus topic all execution lifecycle events are published
// to.
const Topic = "conduit.executions"

const (
	EventKeyMetadataKey  = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionTimeoutEvent   EventType = "execution.timeout"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	NodeFinishedEvent EventType = "node.finished"
	NodeFailedEvent   EventType = "node.failed"

	ApprovalRequestedEvent EventType = "approval.requested"
	ApprovalDecidedEvent   EventType = "approval.decided"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	TriggeredBy string         `json:"triggered_by,omitempty"`
	TriggerType string         `json:"trigger_type,omitempty"`
	InputData   map[string]any `json:"input_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	Output   map[string]any `json:"output,omitempty"`
	Duration time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	NodeID   string        `json:"node_id,omitempty"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	Reason string `json:"reason,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

// ExecutionTimeout is published when the dispatcher fails an execution for
// exceeding the running-time ceiling.
type ExecutionTimeout struct {
	BaseEvent

	Limit time.Duration `json:"limit"`
}

func (e ExecutionTimeout) GetType() EventType { return ExecutionTimeoutEvent }

// ExecutionPaused is published when an execution parks at an approval node.
type ExecutionPaused struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e ExecutionPaused) GetType() EventType { return ExecutionPausedEvent }

type ExecutionResumed struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	Decision string `json:"decision"`
}

func (e ExecutionResumed) GetType() EventType { return ExecutionResumedEvent }

type NodeFinished struct {
	BaseEvent

	NodeID     string         `json:"node_id"`
	NodeName   string         `json:"node_name,omitempty"`
	OutputData map[string]any `json:"output_data,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

func (e NodeFinished) GetType() EventType { return NodeFinishedEvent }

type NodeFailed struct {
	BaseEvent

	NodeID   string        `json:"node_id"`
	NodeName string        `json:"node_name,omitempty"`
	Error    string        `json:"error"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }

type ApprovalRequested struct {
	BaseEvent

	NodeID       string    `json:"node_id"`
	ApprovalID   string    `json:"approval_id"`
	RequiredFrom string    `json:"required_from"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (e ApprovalRequested) GetType() EventType { return ApprovalRequestedEvent }

type ApprovalDecided struct {
	BaseEvent

	NodeID    string `json:"node_id"`
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by,omitempty"`
}

func (e ApprovalDecided) GetType() EventType { return ApprovalDecidedEvent }
