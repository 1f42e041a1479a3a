package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when schedule validation fails. Invalid
// cron expressions are rejected here, at creation time, never at fire time.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// WorkflowSchedule is a recurring or one-time future trigger that creates
// executions. A schedule with an empty CronExpression fires once at
// NextRunAt and deactivates.
type WorkflowSchedule struct {
	ID             string         `json:"id"          validate:"required"`
	WorkflowID     string         `json:"workflow_id" validate:"required"`
	CronExpression string         `json:"cron_expression,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	InputData      map[string]any `json:"input_data,omitempty"`
	Priority       Priority       `json:"priority"`

	// MaxRuns limits how many times the schedule fires. Zero means
	// unlimited. The schedule deactivates once RunCount reaches it.
	MaxRuns  int `json:"max_runs,omitempty"`
	RunCount int `json:"run_count"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	NextRunAt     time.Time  `json:"next_run_at"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewCronSchedule creates a recurring schedule from a standard 5-field cron
// expression, evaluated in the given timezone (UTC when empty). The first
// fire time is computed immediately; a bad expression or timezone fails
// here.
func NewCronSchedule(workflowID, cronExpression, timezone string, input map[string]any, maxRuns int) (*WorkflowSchedule, error) {
	now := time.Now().UTC()
	schedule := &WorkflowSchedule{
		ID:             "sched-" + uuid.New().String()[:8],
		WorkflowID:     workflowID,
		CronExpression: cronExpression,
		Timezone:       timezone,
		InputData:      input,
		Priority:       PriorityNormal,
		MaxRuns:        maxRuns,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := schedule.computeNextRun(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// NewOneTimeSchedule creates a schedule that fires exactly once at runAt.
func NewOneTimeSchedule(workflowID string, runAt time.Time, input map[string]any) (*WorkflowSchedule, error) {
	now := time.Now().UTC()

	if runAt.Before(now) {
		return nil, fmt.Errorf("%w: run time %s is in the past", ErrInvalidSchedule, runAt.Format(time.RFC3339))
	}

	return &WorkflowSchedule{
		ID:         "sched-" + uuid.New().String()[:8],
		WorkflowID: workflowID,
		InputData:  input,
		Priority:   PriorityNormal,
		MaxRuns:    1,
		NextRunAt:  runAt.UTC(),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NewIntervalSchedule creates a recurring schedule firing every
// intervalSeconds, translated to an equivalent cron expression. Sub-minute
// intervals collapse to every minute; that is a documented limitation of
// the cron translation, not something to silently fix.
func NewIntervalSchedule(workflowID string, intervalSeconds int, input map[string]any, maxRuns int) (*WorkflowSchedule, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidSchedule, intervalSeconds)
	}

	return NewCronSchedule(workflowID, IntervalToCron(intervalSeconds), "", input, maxRuns)
}

// IntervalToCron translates "every N seconds" into a 5-field cron
// expression at minute granularity.
func IntervalToCron(intervalSeconds int) string {
	minutes := intervalSeconds / 60
	if minutes <= 1 {
		return "* * * * *"
	}

	return fmt.Sprintf("*/%d * * * *", minutes)
}

// Validate checks the schedule fields, including parseability of the cron
// expression and timezone.
func (s *WorkflowSchedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" {
		return ErrInvalidSchedule
	}

	if s.CronExpression == "" {
		// One-time schedule; NextRunAt is the trigger.
		if s.NextRunAt.IsZero() {
			return fmt.Errorf("%w: one-time schedule needs a run time", ErrInvalidSchedule)
		}

		return nil
	}

	if _, err := cronParser.Parse(s.CronExpression); err != nil {
		return fmt.Errorf("%w: bad cron expression %q: %v", ErrInvalidSchedule, s.CronExpression, err)
	}

	if _, err := s.location(); err != nil {
		return fmt.Errorf("%w: bad timezone %q: %v", ErrInvalidSchedule, s.Timezone, err)
	}

	return nil
}

// IsDue reports whether the schedule should fire at the given time.
func (s *WorkflowSchedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextRunAt.After(now)
}

// Exhausted reports whether the schedule has reached its run limit.
func (s *WorkflowSchedule) Exhausted() bool {
	return s.MaxRuns > 0 && s.RunCount >= s.MaxRuns
}

// RecordRun accounts for one fire: bumps the run counter, records the
// outcome, computes the next fire time and deactivates the schedule when
// the run limit is reached. Deactivation happens even when the underlying
// execution failed.
func (s *WorkflowSchedule) RecordRun(status string, at time.Time) error {
	at = at.UTC()
	s.RunCount++
	s.LastRunAt = &at
	s.LastRunStatus = status
	s.UpdatedAt = time.Now().UTC()

	if s.Exhausted() || s.CronExpression == "" {
		s.Active = false

		return nil
	}

	return s.computeNextRun(at)
}

func (s *WorkflowSchedule) computeNextRun(reference time.Time) error {
	spec, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return fmt.Errorf("%w: bad cron expression %q: %v", ErrInvalidSchedule, s.CronExpression, err)
	}

	loc, err := s.location()
	if err != nil {
		return fmt.Errorf("%w: bad timezone %q: %v", ErrInvalidSchedule, s.Timezone, err)
	}

	s.NextRunAt = spec.Next(reference.In(loc)).UTC()
	s.UpdatedAt = time.Now().UTC()

	return nil
}

func (s *WorkflowSchedule) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}

	return time.LoadLocation(s.Timezone)
}
