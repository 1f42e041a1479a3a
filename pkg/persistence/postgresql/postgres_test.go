package postgresql_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
	"github.com/veilstream/conduit/pkg/persistence/postgresql"
)

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("conduit_test"),
		postgres.WithUsername("conduit"),
		postgres.WithPassword("conduit"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})

	return p, ctx
}

func TestPostgresPersistence(t *testing.T) {
	p, ctx := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	t.Run("workflow round trip", func(t *testing.T) {
		workflow := &models.Workflow{
			ID:        "wf-pg",
			Name:      "Postgres workflow",
			Status:    models.WorkflowStatusActive,
			CreatedAt: time.Now().UTC(),
			Nodes: []*models.Node{
				{ID: "n-start", Type: models.NodeTypeStart, Name: "start"},
				{ID: "n-end", Type: models.NodeTypeEnd, Name: "end"},
			},
			Connections: []*models.Connection{
				{ID: "c-1", FromNodeID: "n-start", ToNodeID: "n-end"},
			},
		}

		require.NoError(t, p.WorkflowRepository().SaveWorkflow(ctx, workflow))

		loaded, err := p.WorkflowRepository().WorkflowByID(ctx, "wf-pg")
		require.NoError(t, err)
		assert.Equal(t, "Postgres workflow", loaded.Name)
		assert.Len(t, loaded.Nodes, 2)

		_, err = p.WorkflowRepository().WorkflowByID(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
	})

	t.Run("execution checkpoint upsert", func(t *testing.T) {
		execution := models.NewExecution("wf-pg", map[string]any{"n": 1}, "tester", "manual")
		require.NoError(t, p.ExecutionRepository().SaveExecution(ctx, execution))

		execution.Status = models.ExecutionStatusRunning
		execution.CurrentNodeID = "n-start"
		execution.RuntimeData["n"] = 2
		require.NoError(t, p.ExecutionRepository().SaveExecution(ctx, execution))

		loaded, err := p.ExecutionRepository().ExecutionByID(ctx, execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)
		assert.Equal(t, "n-start", loaded.CurrentNodeID)
		assert.Equal(t, float64(2), loaded.RuntimeData["n"])
	})

	t.Run("pending executions ordered by priority then schedule time", func(t *testing.T) {
		low := models.NewExecution("wf-order", nil, "", "")
		low.Priority = models.PriorityLow
		critical := models.NewExecution("wf-order", nil, "", "")
		critical.Priority = models.PriorityCritical

		require.NoError(t, p.ExecutionRepository().SaveExecution(ctx, low))
		require.NoError(t, p.ExecutionRepository().SaveExecution(ctx, critical))

		pending, err := p.ExecutionRepository().PendingExecutions(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(pending), 2)
		assert.Equal(t, critical.ID, pending[0].ID)
	})

	t.Run("log trail", func(t *testing.T) {
		entry := models.NewExecutionLog("exec-pg", "n-1", models.LogLevelInfo, "executing node", map[string]any{"attempt": 1})
		require.NoError(t, p.LogRepository().AppendLog(ctx, entry))

		execLevel := models.NewExecutionLog("exec-pg", "", models.LogLevelError, "execution failed", nil)
		require.NoError(t, p.LogRepository().AppendLog(ctx, execLevel))

		entries, err := p.LogRepository().LogsByExecution(ctx, "exec-pg")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "executing node", entries[0].Message)
		assert.Empty(t, entries[1].NodeID)
	})

	t.Run("schedules", func(t *testing.T) {
		schedule, err := models.NewCronSchedule("wf-pg", "*/10 * * * *", "", nil, 0)
		require.NoError(t, err)
		require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, schedule))

		active, err := p.ScheduleRepository().ActiveSchedules(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)

		schedule.Active = false
		require.NoError(t, p.ScheduleRepository().SaveSchedule(ctx, schedule))

		active, err = p.ScheduleRepository().ActiveSchedules(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("approvals", func(t *testing.T) {
		cfg := &models.ApprovalConfig{TimeoutHours: 2}
		approval := models.NewApproval("exec-pg", "n-appr", "carol@example.com", cfg, nil)
		require.NoError(t, p.ApprovalRepository().SaveApproval(ctx, approval))

		byExec, err := p.ApprovalRepository().ApprovalsByExecution(ctx, "exec-pg", "n-appr")
		require.NoError(t, err)
		require.Len(t, byExec, 1)

		overdue, err := p.ApprovalRepository().PendingApprovalsBefore(ctx, time.Now().UTC().Add(3*time.Hour))
		require.NoError(t, err)
		assert.Len(t, overdue, 1)
	})
}
