package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedule(t *testing.T) {
	schedule, err := NewCronSchedule("wf-1", "*/5 * * * *", "", map[string]any{"source": "cron"}, 0)
	require.NoError(t, err)

	assert.True(t, schedule.Active)
	assert.Equal(t, 0, schedule.RunCount)
	assert.False(t, schedule.NextRunAt.IsZero())
	assert.True(t, schedule.NextRunAt.After(time.Now().UTC().Add(-time.Minute)))
	assert.NoError(t, schedule.Validate())
}

func TestNewCronScheduleRejectsBadExpression(t *testing.T) {
	_, err := NewCronSchedule("wf-1", "not a cron", "", nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestNewCronScheduleRejectsBadTimezone(t *testing.T) {
	_, err := NewCronSchedule("wf-1", "0 9 * * *", "Mars/Olympus", nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestNewOneTimeSchedule(t *testing.T) {
	runAt := time.Now().UTC().Add(time.Hour)

	schedule, err := NewOneTimeSchedule("wf-1", runAt, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, schedule.MaxRuns)
	assert.Empty(t, schedule.CronExpression)
	assert.Equal(t, runAt, schedule.NextRunAt)
}

func TestNewOneTimeScheduleRejectsPast(t *testing.T) {
	_, err := NewOneTimeSchedule("wf-1", time.Now().UTC().Add(-time.Hour), nil)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestIntervalToCron(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{30, "* * * * *"}, // sub-minute collapses to every minute
		{60, "* * * * *"},
		{300, "*/5 * * * *"},
		{3600, "*/60 * * * *"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IntervalToCron(tt.seconds))
	}
}

func TestRecordRunDeactivatesAtMaxRuns(t *testing.T) {
	schedule, err := NewCronSchedule("wf-1", "* * * * *", "", nil, 1)
	require.NoError(t, err)

	// Deactivation happens regardless of the execution outcome.
	require.NoError(t, schedule.RecordRun(string(ExecutionStatusFailed), time.Now().UTC()))

	assert.False(t, schedule.Active)
	assert.Equal(t, 1, schedule.RunCount)
	assert.Equal(t, "failed", schedule.LastRunStatus)
	require.NotNil(t, schedule.LastRunAt)
}

func TestRecordRunAdvancesNextRun(t *testing.T) {
	schedule, err := NewCronSchedule("wf-1", "0 * * * *", "", nil, 0)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, schedule.RecordRun(string(ExecutionStatusCompleted), at))

	assert.True(t, schedule.Active)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), schedule.NextRunAt)
}

func TestRecordRunOneTimeDeactivates(t *testing.T) {
	schedule, err := NewOneTimeSchedule("wf-1", time.Now().UTC().Add(time.Minute), nil)
	require.NoError(t, err)

	require.NoError(t, schedule.RecordRun(string(ExecutionStatusCompleted), time.Now().UTC()))
	assert.False(t, schedule.Active)
}

func TestIsDue(t *testing.T) {
	now := time.Now().UTC()

	schedule := &WorkflowSchedule{Active: true, NextRunAt: now.Add(-time.Second)}
	assert.True(t, schedule.IsDue(now))

	schedule.NextRunAt = now.Add(time.Minute)
	assert.False(t, schedule.IsDue(now))

	schedule.NextRunAt = now.Add(-time.Second)
	schedule.Active = false
	assert.False(t, schedule.IsDue(now))
}

func TestCronScheduleTimezone(t *testing.T) {
	schedule, err := NewCronSchedule("wf-1", "0 9 * * *", "America/Sao_Paulo", nil, 0)
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	local := schedule.NextRunAt.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 0, local.Minute())
}
