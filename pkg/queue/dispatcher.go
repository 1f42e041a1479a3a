package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veilstream/conduit/pkg/eventbus"
	"github.com/veilstream/conduit/pkg/events"
	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

const (
	DefaultMaxConcurrent = 5
	DefaultTickInterval  = 3 * time.Second
	DefaultRunCeiling    = 30 * time.Minute
	DefaultKillGrace     = 30 * time.Second
)

// ErrExecutionTimeout marks an execution forcibly failed for exceeding the
// dispatcher's wall-clock ceiling.
var ErrExecutionTimeout = errors.New("execution exceeded maximum running time")

// Runner executes one admitted execution to a terminal or parked state. The
// engine implements it.
type Runner interface {
	Run(ctx context.Context, execution *models.WorkflowExecution) error
}

// Config bounds the dispatcher. Zero values fall back to the defaults.
type Config struct {
	MaxConcurrent int
	TickInterval  time.Duration
	RunCeiling    time.Duration

	// KillGrace is how long a timed-out execution may take to honor its
	// cancelled context before the record is force-failed anyway.
	KillGrace time.Duration
}

type activeJob struct {
	execution *models.WorkflowExecution
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	timedOut  bool
}

// Dispatcher polls the queue and admits due executions while the number of
// concurrently active runs stays below the cap. Paused (approval-parked)
// executions leave their worker immediately, so the ceiling only governs
// actively running work.
type Dispatcher struct {
	queue      *PriorityQueue
	runner     Runner
	executions persistence.ExecutionRepository
	eventBus   eventbus.EventPublisher
	logger     *slog.Logger
	cfg        Config

	mu     sync.Mutex
	active map[string]*activeJob
}

func NewDispatcher(
	q *PriorityQueue,
	runner Runner,
	executions persistence.ExecutionRepository,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
	cfg Config,
) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	if cfg.RunCeiling <= 0 {
		cfg.RunCeiling = DefaultRunCeiling
	}

	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}

	return &Dispatcher{
		queue:      q,
		runner:     runner,
		executions: executions,
		eventBus:   eventBus,
		logger:     logger.With("module", "dispatcher"),
		cfg:        cfg,
		active:     make(map[string]*activeJob),
	}
}

// Submit queues an execution for dispatch.
func (d *Dispatcher) Submit(execution *models.WorkflowExecution) {
	d.queue.Enqueue(execution)
}

// Restore requeues the pending executions found in storage, typically after
// a restart.
func (d *Dispatcher) Restore(ctx context.Context) error {
	pending, err := d.executions.PendingExecutions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending executions: %w", err)
	}

	for _, execution := range pending {
		d.queue.Enqueue(execution)
	}

	d.logger.InfoContext(ctx, "Restored pending executions", "count", len(pending))

	return nil
}

// Start runs the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.InfoContext(ctx, "Dispatcher started",
		"max_concurrent", d.cfg.MaxConcurrent,
		"tick_interval", d.cfg.TickInterval,
		"run_ceiling", d.cfg.RunCeiling)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping")

			return
		case now := <-ticker.C:
			d.enforceCeiling(ctx, now)
			d.admit(ctx, now)
		}
	}
}

// ActiveCount returns the number of currently running executions.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.active)
}

func (d *Dispatcher) admit(ctx context.Context, now time.Time) {
	for {
		d.mu.Lock()
		slots := d.cfg.MaxConcurrent - len(d.active)
		d.mu.Unlock()

		if slots <= 0 {
			return
		}

		execution := d.queue.PopDue(now)
		if execution == nil {
			return
		}

		d.launch(ctx, execution)
	}
}

func (d *Dispatcher) launch(ctx context.Context, execution *models.WorkflowExecution) {
	runCtx, cancel := context.WithCancel(ctx)

	job := &activeJob{
		execution: execution,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	d.mu.Lock()
	d.active[execution.ID] = job
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Dispatching execution",
		"execution_id", execution.ID, "workflow_id", execution.WorkflowID, "priority", execution.Priority)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.failExecution(ctx, execution, fmt.Sprintf("execution panicked: %v", r))
			}

			close(job.done)
			cancel()

			d.mu.Lock()
			delete(d.active, execution.ID)
			d.mu.Unlock()
		}()

		if err := d.runner.Run(runCtx, execution); err != nil {
			// Run errors mean the definition could not even be loaded;
			// per-step failures never surface here.
			d.logger.ErrorContext(ctx, "Execution run failed",
				"execution_id", execution.ID, "error", err)
			d.failExecution(ctx, execution, err.Error())
		}
	}()
}

// enforceCeiling force-fails active jobs that exceeded the wall-clock
// ceiling, regardless of which node they are on.
func (d *Dispatcher) enforceCeiling(ctx context.Context, now time.Time) {
	d.mu.Lock()

	var expired []*activeJob

	for _, job := range d.active {
		if !job.timedOut && now.Sub(job.startedAt) > d.cfg.RunCeiling {
			job.timedOut = true

			expired = append(expired, job)
		}
	}

	d.mu.Unlock()

	for _, job := range expired {
		go d.timeout(ctx, job)
	}
}

func (d *Dispatcher) timeout(ctx context.Context, job *activeJob) {
	d.logger.WarnContext(ctx, "Execution exceeded run ceiling, cancelling",
		"execution_id", job.execution.ID, "ceiling", d.cfg.RunCeiling)

	job.cancel()

	// An action that ignores its context must not postpone the forced
	// failure past the grace period; the record is sealed either way.
	select {
	case <-job.done:
	case <-time.After(d.cfg.KillGrace):
		d.logger.ErrorContext(ctx, "Execution ignored cancellation past the grace period",
			"execution_id", job.execution.ID, "grace", d.cfg.KillGrace)
	}

	message := fmt.Sprintf("%s (%s)", ErrExecutionTimeout, d.cfg.RunCeiling)
	d.failExecution(ctx, job.execution, message)

	if d.eventBus != nil {
		event := events.ExecutionTimeout{
			BaseEvent: events.BaseEvent{
				ID:          "evt-" + job.execution.ID + "-timeout",
				Type:        events.ExecutionTimeoutEvent,
				Timestamp:   time.Now().UTC(),
				WorkflowID:  job.execution.WorkflowID,
				ExecutionID: job.execution.ID,
			},
			Limit: d.cfg.RunCeiling,
		}
		if err := d.eventBus.Publish(ctx, job.execution.WorkflowID, event); err != nil {
			d.logger.WarnContext(ctx, "Failed to publish timeout event",
				"execution_id", job.execution.ID, "error", err)
		}
	}
}

func (d *Dispatcher) failExecution(ctx context.Context, execution *models.WorkflowExecution, message string) {
	stored, err := d.executions.ExecutionByID(ctx, execution.ID)
	if err != nil {
		stored = execution
	}

	if stored.Status.Terminal() && stored.Status != models.ExecutionStatusCancelled {
		return
	}

	now := time.Now().UTC()
	stored.Status = models.ExecutionStatusFailed
	stored.ErrorDetails = message
	stored.CompletedAt = &now

	if stored.StartedAt != nil {
		stored.ExecutionTime = now.Sub(*stored.StartedAt)
	}

	if err := d.executions.SaveExecution(ctx, stored); err != nil {
		d.logger.ErrorContext(ctx, "Failed to persist forced failure",
			"execution_id", execution.ID, "error", err)
	}
}
