// Package notification provides the notifier implementations the engine
// delivers workflow notifications through.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/veilstream/conduit/pkg/eventbus"
	"github.com/veilstream/conduit/pkg/events"
	"github.com/veilstream/conduit/pkg/protocol"
)

// SlogNotifier writes notifications to the structured log. It is the
// default for deployments without an outbound channel.
type SlogNotifier struct {
	logger *slog.Logger
}

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger.With("module", "notifier")}
}

func (n *SlogNotifier) Notify(ctx context.Context, notification protocol.Notification) error {
	n.logger.InfoContext(ctx, notification.Message,
		"kind", notification.Kind,
		"workflow_id", notification.WorkflowID,
		"execution_id", notification.ExecutionID,
		"node_id", notification.NodeID,
	)

	return nil
}

// EventBusNotifier publishes notifications onto the event bus so external
// delivery services can subscribe to them.
type EventBusNotifier struct {
	publisher eventbus.EventPublisher
}

func NewEventBusNotifier(publisher eventbus.EventPublisher) *EventBusNotifier {
	return &EventBusNotifier{publisher: publisher}
}

func (n *EventBusNotifier) Notify(ctx context.Context, notification protocol.Notification) error {
	event := notificationEvent{
		BaseEvent: events.BaseEvent{
			ID:          "evt-notify-" + notification.ExecutionID + "-" + notification.Kind,
			Timestamp:   time.Now().UTC(),
			WorkflowID:  notification.WorkflowID,
			ExecutionID: notification.ExecutionID,
		},
		Notification: notification,
	}

	switch notification.Kind {
	case protocol.NotificationCompletion:
		event.Type = events.ExecutionCompletedEvent
	case protocol.NotificationFailure, protocol.NotificationStepFailure:
		event.Type = events.ExecutionFailedEvent
	case protocol.NotificationApproval:
		event.Type = events.ApprovalRequestedEvent
	default:
		event.Type = events.ExecutionStartedEvent
	}

	return n.publisher.Publish(ctx, notification.WorkflowID, event)
}

type notificationEvent struct {
	events.BaseEvent

	Notification protocol.Notification `json:"notification"`
}

func (e notificationEvent) GetType() events.EventType { return e.Type }
