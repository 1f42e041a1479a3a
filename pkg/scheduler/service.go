// Package scheduler fires workflow schedules. It owns the recurring timer
// only: due schedules are admitted through the engine and handed to the
// dispatcher, never executed inline on the timer goroutine.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
)

const defaultFireConcurrency = 5

// Admitter is the slice of the engine the scheduler needs: admitting
// executions and expiring overdue approvals. ExpireApprovals only resolves
// the gates and returns the executions staged for re-dispatch; the
// continued traversal belongs to the dispatcher, never to the tick
// goroutine.
type Admitter interface {
	Execute(ctx context.Context, workflowID string, input map[string]any, triggeredBy, triggerType string) (*models.WorkflowExecution, error)
	ExpireApprovals(ctx context.Context, now time.Time) ([]*models.WorkflowExecution, error)
}

// Submitter hands admitted executions to the dispatcher.
type Submitter interface {
	Submit(execution *models.WorkflowExecution)
}

// Service polls active schedules once a minute and fires the due ones
// through a bounded pool, so one slow fire cannot delay the rest of the
// tick.
type Service struct {
	persistence persistence.Persistence
	admitter    Admitter
	dispatcher  Submitter
	logger      *slog.Logger
	cron        *cron.Cron

	// fireSlots bounds concurrent fires per tick.
	fireSlots chan struct{}

	// outcomePoll is how often a fire goroutine re-reads its dispatched
	// execution while waiting for the terminal status.
	outcomePoll time.Duration
}

func NewService(
	p persistence.Persistence,
	admitter Admitter,
	dispatcher Submitter,
	logger *slog.Logger,
) *Service {
	s := &Service{
		persistence: p,
		admitter:    admitter,
		dispatcher:  dispatcher,
		logger:      logger.With("module", "scheduler"),
		fireSlots:   make(chan struct{}, defaultFireConcurrency),
		outcomePoll: 2 * time.Second,
	}

	cronLogger := &slogCronLogger{logger: s.logger}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	return s
}

// CreateCronSchedule registers a recurring schedule. Invalid cron
// expressions and timezones are rejected here, never at fire time.
func (s *Service) CreateCronSchedule(
	ctx context.Context,
	workflowID, cronExpression, timezone string,
	input map[string]any,
	priority models.Priority,
	maxRuns int,
) (*models.WorkflowSchedule, error) {
	schedule, err := models.NewCronSchedule(workflowID, cronExpression, timezone, input, maxRuns)
	if err != nil {
		return nil, err
	}

	return s.register(ctx, schedule, priority)
}

// CreateOneTimeSchedule registers a schedule firing once at runAt.
func (s *Service) CreateOneTimeSchedule(
	ctx context.Context,
	workflowID string,
	runAt time.Time,
	input map[string]any,
	priority models.Priority,
) (*models.WorkflowSchedule, error) {
	schedule, err := models.NewOneTimeSchedule(workflowID, runAt, input)
	if err != nil {
		return nil, err
	}

	return s.register(ctx, schedule, priority)
}

// CreateIntervalSchedule registers a schedule firing every intervalSeconds,
// translated to cron at minute granularity.
func (s *Service) CreateIntervalSchedule(
	ctx context.Context,
	workflowID string,
	intervalSeconds int,
	input map[string]any,
	priority models.Priority,
	maxRuns int,
) (*models.WorkflowSchedule, error) {
	schedule, err := models.NewIntervalSchedule(workflowID, intervalSeconds, input, maxRuns)
	if err != nil {
		return nil, err
	}

	return s.register(ctx, schedule, priority)
}

func (s *Service) register(ctx context.Context, schedule *models.WorkflowSchedule, priority models.Priority) (*models.WorkflowSchedule, error) {
	if priority != 0 {
		schedule.Priority = priority
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.persistence.WorkflowRepository().WorkflowByID(ctx, schedule.WorkflowID); err != nil {
		return nil, err
	}

	if err := s.persistence.ScheduleRepository().SaveSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	s.logger.InfoContext(ctx, "Registered schedule",
		"schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID,
		"cron", schedule.CronExpression, "next_run_at", schedule.NextRunAt)

	return schedule, nil
}

// DeleteSchedule removes a schedule.
func (s *Service) DeleteSchedule(ctx context.Context, scheduleID string) error {
	return s.persistence.ScheduleRepository().DeleteSchedule(ctx, scheduleID)
}

// Start begins the minute tick until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("* * * * *", func() { s.Tick(ctx, time.Now().UTC()) }); err != nil {
		return fmt.Errorf("failed to register tick: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info("Scheduler stopped")
	}()

	return nil
}

// Tick fires every due schedule and expires overdue approvals. Exported so
// the binary and tests can force a tick without waiting for the cron edge.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	schedules, err := s.persistence.ScheduleRepository().ActiveSchedules(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load active schedules", "error", err)

		return
	}

	for _, schedule := range schedules {
		if !schedule.IsDue(now) {
			continue
		}

		s.fireSlots <- struct{}{}

		go func(schedule *models.WorkflowSchedule) {
			execution := s.fire(ctx, schedule, now)
			<-s.fireSlots

			// The slot is released before the (possibly long) wait for
			// the execution outcome, so a slow run never starves the pool.
			if execution != nil {
				s.recordOutcome(ctx, schedule.ID, execution.ID)
			}
		}(schedule)
	}

	staged, err := s.admitter.ExpireApprovals(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to expire approvals", "error", err)

		return
	}

	for _, execution := range staged {
		s.dispatcher.Submit(execution)
	}

	if len(staged) > 0 {
		s.logger.InfoContext(ctx, "Submitted executions resumed by approval timeout", "count", len(staged))
	}
}

// fire admits one execution for a due schedule and records the run. The
// schedule's accounting advances even when admission fails: max_runs counts
// fire attempts, not successes. An admitted run is recorded as "running"
// until its execution reaches a terminal status (see recordOutcome), a
// refused admission as "failed". Returns the dispatched execution, nil when
// admission failed.
func (s *Service) fire(ctx context.Context, schedule *models.WorkflowSchedule, now time.Time) *models.WorkflowExecution {
	logger := s.logger.With("schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID)

	status := "running"

	execution, err := s.admitter.Execute(ctx, schedule.WorkflowID, schedule.InputData, schedule.ID, "schedule")
	if err != nil {
		status = "failed"

		logger.ErrorContext(ctx, "Failed to admit scheduled execution", "error", err)
	} else {
		execution.Priority = schedule.Priority

		if err := s.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
			logger.ErrorContext(ctx, "Failed to persist execution priority", "error", err)
		}

		s.dispatcher.Submit(execution)
		logger.InfoContext(ctx, "Scheduled execution submitted", "execution_id", execution.ID)
	}

	if err := schedule.RecordRun(status, now); err != nil {
		logger.ErrorContext(ctx, "Failed to compute next run", "error", err)

		schedule.Active = false
	}

	if err := s.persistence.ScheduleRepository().SaveSchedule(ctx, schedule); err != nil {
		logger.ErrorContext(ctx, "Failed to persist schedule accounting", "error", err)
	}

	return execution
}

// recordOutcome waits for the dispatched execution to reach a terminal
// status and writes it back to the schedule's last_run_status. The wait is
// bounded by the execution itself: the dispatcher's run ceiling and the
// approval expiry sweep guarantee every execution terminalizes eventually.
func (s *Service) recordOutcome(ctx context.Context, scheduleID, executionID string) {
	logger := s.logger.With("schedule_id", scheduleID, "execution_id", executionID)

	ticker := time.NewTicker(s.outcomePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		execution, err := s.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
		if err != nil {
			logger.WarnContext(ctx, "Failed to read dispatched execution", "error", err)

			return
		}

		if !execution.Status.Terminal() {
			continue
		}

		status := "failed"
		if execution.Status == models.ExecutionStatusCompleted {
			status = "success"
		}

		schedule, err := s.persistence.ScheduleRepository().ScheduleByID(ctx, scheduleID)
		if err != nil {
			logger.WarnContext(ctx, "Failed to reload schedule for outcome", "error", err)

			return
		}

		schedule.LastRunStatus = status
		schedule.UpdatedAt = time.Now().UTC()

		if err := s.persistence.ScheduleRepository().SaveSchedule(ctx, schedule); err != nil {
			logger.ErrorContext(ctx, "Failed to persist run outcome", "error", err)
		}

		return
	}
}

// slogCronLogger adapts slog to the cron logger interface.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l *slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
