// Package queue provides the priority job queue and the polling dispatcher
// that admits pending executions to workers under a concurrency cap.
package queue

import (
	"sync"
	"time"

	"github.com/veilstream/conduit/pkg/models"
)

// PriorityQueue orders pending executions by priority descending, then by
// scheduled time ascending. Insertion is an O(n) scan; this is a background
// job queue, not a high-throughput data path.
type PriorityQueue struct {
	mu    sync.Mutex
	items []*models.WorkflowExecution
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Enqueue inserts the execution at its ordered position.
func (q *PriorityQueue) Enqueue(execution *models.WorkflowExecution) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos := len(q.items)

	for i, item := range q.items {
		if before(execution, item) {
			pos = i

			break
		}
	}

	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = execution
}

// PopDue removes and returns the most urgent execution whose scheduled time
// has arrived, or nil. A high-priority item scheduled for the future does
// not block due lower-priority work.
func (q *PriorityQueue) PopDue(now time.Time) *models.WorkflowExecution {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.ScheduledAt.After(now) {
			continue
		}

		q.items = append(q.items[:i], q.items[i+1:]...)

		return item
	}

	return nil
}

func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func before(a, b *models.WorkflowExecution) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}

	return a.ScheduledAt.Before(b.ScheduledAt)
}
