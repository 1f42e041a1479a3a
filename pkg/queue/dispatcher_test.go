package queue

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence/file"
)

// blockingRunner holds every execution until released, tracking the peak
// number of concurrent runs.
type blockingRunner struct {
	mu      sync.Mutex
	running int
	peak    int
	started chan string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan string, 100),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, execution *models.WorkflowExecution) error {
	r.mu.Lock()
	r.running++

	if r.running > r.peak {
		r.peak = r.running
	}
	r.mu.Unlock()

	r.started <- execution.ID

	select {
	case <-r.release:
	case <-ctx.Done():
	}

	r.mu.Lock()
	r.running--
	r.mu.Unlock()

	return nil
}

func (r *blockingRunner) peakConcurrency() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.peak
}

func newTestDispatcher(t *testing.T, runner Runner, cfg Config) (*Dispatcher, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)

	return NewDispatcher(NewPriorityQueue(), runner, store.ExecutionRepository(), nil, logger, cfg), store
}

func TestDispatcherHonorsConcurrencyCap(t *testing.T) {
	runner := newBlockingRunner()

	d, store := newTestDispatcher(t, runner, Config{
		MaxConcurrent: 5,
		TickInterval:  10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for range 10 {
		execution := models.NewExecution("wf-1", nil, "", "")
		require.NoError(t, store.ExecutionRepository().SaveExecution(ctx, execution))
		d.Submit(execution)
	}

	go d.Start(ctx)

	// Wait until the cap is reached.
	for range 5 {
		select {
		case <-runner.started:
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not start enough executions")
		}
	}

	// Give the dispatcher more ticks; it must not exceed the cap.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 5, d.ActiveCount())

	close(runner.release)

	// The remaining jobs drain once slots free up.
	for range 5 {
		select {
		case <-runner.started:
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not drain the queue")
		}
	}

	assert.Equal(t, 5, runner.peakConcurrency())
}

func TestDispatcherEnforcesRunCeiling(t *testing.T) {
	runner := newBlockingRunner()

	d, store := newTestDispatcher(t, runner, Config{
		MaxConcurrent: 2,
		TickInterval:  10 * time.Millisecond,
		RunCeiling:    50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	execution := models.NewExecution("wf-1", nil, "", "")
	started := time.Now().UTC()
	execution.StartedAt = &started
	require.NoError(t, store.ExecutionRepository().SaveExecution(ctx, execution))
	d.Submit(execution)

	go d.Start(ctx)

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("execution was never dispatched")
	}

	require.Eventually(t, func() bool {
		stored, err := store.ExecutionRepository().ExecutionByID(ctx, execution.ID)
		if err != nil {
			return false
		}

		return stored.Status == models.ExecutionStatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := store.ExecutionRepository().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.ErrorDetails, ErrExecutionTimeout.Error())
}

// deafRunner never honors its cancelled context; it only returns when
// explicitly released.
type deafRunner struct {
	started chan string
	release chan struct{}
}

func (r *deafRunner) Run(_ context.Context, execution *models.WorkflowExecution) error {
	r.started <- execution.ID
	<-r.release

	return nil
}

func TestRunCeilingSealsDespiteStuckRunner(t *testing.T) {
	runner := &deafRunner{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	defer close(runner.release)

	d, store := newTestDispatcher(t, runner, Config{
		MaxConcurrent: 1,
		TickInterval:  10 * time.Millisecond,
		RunCeiling:    30 * time.Millisecond,
		KillGrace:     30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	execution := models.NewExecution("wf-1", nil, "", "")
	started := time.Now().UTC()
	execution.StartedAt = &started
	require.NoError(t, store.ExecutionRepository().SaveExecution(ctx, execution))
	d.Submit(execution)

	go d.Start(ctx)

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("execution was never dispatched")
	}

	// The runner ignores cancellation, so the record must be sealed after
	// the grace period without waiting for it to return.
	require.Eventually(t, func() bool {
		stored, err := store.ExecutionRepository().ExecutionByID(ctx, execution.ID)
		if err != nil {
			return false
		}

		return stored.Status == models.ExecutionStatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := store.ExecutionRepository().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.ErrorDetails, ErrExecutionTimeout.Error())

	// The runner really is still stuck.
	assert.Equal(t, 1, d.ActiveCount())
}

func TestDispatcherRestoresPendingExecutions(t *testing.T) {
	runner := newBlockingRunner()

	d, store := newTestDispatcher(t, runner, Config{TickInterval: 10 * time.Millisecond})

	ctx := context.Background()

	pending := models.NewExecution("wf-1", nil, "", "")
	completed := models.NewExecution("wf-1", nil, "", "")
	completed.Status = models.ExecutionStatusCompleted

	require.NoError(t, store.ExecutionRepository().SaveExecution(ctx, pending))
	require.NoError(t, store.ExecutionRepository().SaveExecution(ctx, completed))

	require.NoError(t, d.Restore(ctx))
	assert.Equal(t, 1, d.queue.Len())
}
