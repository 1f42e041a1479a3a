package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/channels/gochannel"
	"github.com/veilstream/conduit/pkg/events"
)

func TestPublishAndSubscribe(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	received := make(chan *events.ExecutionCompleted, 1)

	bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.ExecutionCompleted)
		if ok {
			received <- completed
		}

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:          bus.GenerateID(),
			Type:        events.ExecutionCompletedEvent,
			Timestamp:   time.Now().UTC(),
			WorkflowID:  "wf-1",
			ExecutionID: "exec-1",
		},
		Output:   map[string]any{"done": true},
		Duration: time.Second,
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, true, got.Output["done"])
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestUnhandledEventTypesAreAcked(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered; publishing must not block or error.
	event := events.NodeFinished{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.NodeFinishedEvent},
		NodeID:    "n-1",
	}
	assert.NoError(t, bus.Publish(ctx, "wf-1", event))
}
