// Package intake consumes execution requests pushed onto a Redis list by
// external systems and feeds them to the dispatcher.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

// ErrMissingWorkflowID rejects a payload without a workflow_id.
var ErrMissingWorkflowID = errors.New("intake payload has no workflow_id")

// Request is the wire form of one intake payload.
type Request struct {
	WorkflowID  string         `json:"workflow_id"`
	Input       map[string]any `json:"input,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	TriggeredBy string         `json:"triggered_by,omitempty"`
}

// ParseRequest decodes and validates one list entry.
func ParseRequest(payload []byte) (*Request, error) {
	var request Request
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil, fmt.Errorf("malformed intake payload: %w", err)
	}

	if request.WorkflowID == "" {
		return nil, ErrMissingWorkflowID
	}

	return &request, nil
}

// Admitter admits executions; the engine implements it.
type Admitter interface {
	Execute(ctx context.Context, workflowID string, input map[string]any, triggeredBy, triggerType string) (*models.WorkflowExecution, error)
}

// Submitter hands admitted executions to the dispatcher.
type Submitter interface {
	Submit(execution *models.WorkflowExecution)
}

// Consumer pops requests off a Redis list with BLPOP. Malformed payloads and
// rejected admissions are logged and dropped; the consumer never stops over
// one bad message.
type Consumer struct {
	client     redis.UniversalClient
	queue      string
	admitter   Admitter
	dispatcher Submitter
	executions persistence.ExecutionRepository
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewConsumer(
	redisURL, queue string,
	admitter Admitter,
	dispatcher Submitter,
	executions persistence.ExecutionRepository,
	logger *slog.Logger,
) (*Consumer, error) {
	if queue == "" {
		return nil, errors.New("intake queue name is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Consumer{
		client:     redis.NewClient(opts),
		queue:      queue,
		admitter:   admitter,
		dispatcher: dispatcher,
		executions: executions,
		logger:     logger.With("module", "intake", "queue", queue),
	}, nil
}

// Start verifies the connection and begins consuming until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.logger.InfoContext(ctx, "Intake consumer started")

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

// Close waits for the consumer loop and releases the client.
func (c *Consumer) Close() error {
	c.wg.Wait()

	return c.client.Close()
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			c.logger.Info("Intake consumer stopped")

			return
		}

		if err := c.processNext(ctx); err != nil {
			c.logger.ErrorContext(ctx, "Intake poll failed", "error", err)
			time.Sleep(time.Second)
		}
	}
}

func (c *Consumer) processNext(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, time.Second, c.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	c.admit(ctx, result[1])

	return nil
}

// admit turns one list entry into a dispatched execution. Malformed
// payloads and rejected admissions are logged and dropped; a bad producer
// must not wedge the queue.
func (c *Consumer) admit(ctx context.Context, payload string) {
	request, err := ParseRequest([]byte(payload))
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping malformed intake payload", "error", err)

		return
	}

	execution, err := c.admitter.Execute(ctx, request.WorkflowID, request.Input, request.TriggeredBy, "intake")
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping rejected intake request",
			"workflow_id", request.WorkflowID, "error", err)

		return
	}

	if request.Priority != "" {
		execution.Priority = models.ParsePriority(request.Priority)
	}

	if request.ScheduledAt != nil {
		execution.ScheduledAt = request.ScheduledAt.UTC()
	}

	// Persist the overrides before dispatch so a restart restores the job
	// with the requested priority and time, not the admission defaults.
	if err := c.executions.SaveExecution(ctx, execution); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist intake overrides",
			"execution_id", execution.ID, "error", err)
	}

	c.dispatcher.Submit(execution)

	c.logger.InfoContext(ctx, "Intake request submitted",
		"workflow_id", request.WorkflowID, "execution_id", execution.ID)
}
