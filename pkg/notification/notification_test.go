package notification

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/eventbus"
	"github.com/veilstream/conduit/pkg/events"
	"github.com/veilstream/conduit/pkg/protocol"
)

type capturingPublisher struct {
	keys      []string
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, key string, event eventbus.Event) error {
	p.keys = append(p.keys, key)
	p.published = append(p.published, event)

	return nil
}

func TestSlogNotifierNeverFails(t *testing.T) {
	notifier := NewSlogNotifier(slog.New(slog.DiscardHandler))

	err := notifier.Notify(context.Background(), protocol.Notification{
		Kind:        protocol.NotificationCompletion,
		WorkflowID:  "wf-1",
		ExecutionID: "exec-1",
		Message:     "Workflow completed",
	})
	assert.NoError(t, err)
}

func TestEventBusNotifierMapsKinds(t *testing.T) {
	publisher := &capturingPublisher{}
	notifier := NewEventBusNotifier(publisher)
	ctx := context.Background()

	cases := map[string]events.EventType{
		protocol.NotificationCompletion:  events.ExecutionCompletedEvent,
		protocol.NotificationFailure:     events.ExecutionFailedEvent,
		protocol.NotificationStepFailure: events.ExecutionFailedEvent,
		protocol.NotificationApproval:    events.ApprovalRequestedEvent,
	}

	for kind, eventType := range cases {
		require.NoError(t, notifier.Notify(ctx, protocol.Notification{
			Kind:        kind,
			WorkflowID:  "wf-1",
			ExecutionID: "exec-1",
			Message:     "notification",
		}))

		published := publisher.published[len(publisher.published)-1]
		assert.Equal(t, eventType, published.GetType(), "kind %s", kind)
	}

	assert.Equal(t, "wf-1", publisher.keys[0])
}
