package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/models"
)

func executionWith(id string, priority models.Priority, scheduledAt time.Time) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:          id,
		WorkflowID:  "wf-1",
		Status:      models.ExecutionStatusPending,
		Priority:    priority,
		ScheduledAt: scheduledAt,
	}
}

func TestQueueOrdersByPriorityThenScheduleTime(t *testing.T) {
	now := time.Now().UTC()

	q := NewPriorityQueue()
	q.Enqueue(executionWith("low", models.PriorityLow, now.Add(-3*time.Minute)))
	q.Enqueue(executionWith("normal-late", models.PriorityNormal, now.Add(-time.Minute)))
	q.Enqueue(executionWith("critical", models.PriorityCritical, now))
	q.Enqueue(executionWith("normal-early", models.PriorityNormal, now.Add(-2*time.Minute)))

	var order []string
	for {
		item := q.PopDue(now)
		if item == nil {
			break
		}

		order = append(order, item.ID)
	}

	// Priority wins over schedule time; within a priority, earlier
	// schedule time wins.
	assert.Equal(t, []string{"critical", "normal-early", "normal-late", "low"}, order)
}

func TestPopDueSkipsFutureWork(t *testing.T) {
	now := time.Now().UTC()

	q := NewPriorityQueue()
	q.Enqueue(executionWith("future-critical", models.PriorityCritical, now.Add(time.Hour)))
	q.Enqueue(executionWith("due-normal", models.PriorityNormal, now.Add(-time.Minute)))

	// The future critical job must not block the due normal one.
	item := q.PopDue(now)
	require.NotNil(t, item)
	assert.Equal(t, "due-normal", item.ID)

	assert.Nil(t, q.PopDue(now))
	assert.Equal(t, 1, q.Len())
}

func TestPopDueEmptyQueue(t *testing.T) {
	q := NewPriorityQueue()
	assert.Nil(t, q.PopDue(time.Now()))
}
