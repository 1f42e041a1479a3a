package intake

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/persistence"
	"github.com/veilstream/conduit/pkg/persistence/file"
)

func TestParseRequest(t *testing.T) {
	payload := []byte(`{
		"workflow_id": "wf-1",
		"input": {"count": 5},
		"priority": "critical",
		"scheduled_at": "2026-08-27T10:00:00Z",
		"triggered_by": "billing-service"
	}`)

	request, err := ParseRequest(payload)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", request.WorkflowID)
	assert.Equal(t, float64(5), request.Input["count"])
	assert.Equal(t, "critical", request.Priority)
	assert.Equal(t, "billing-service", request.TriggeredBy)
	require.NotNil(t, request.ScheduledAt)
	assert.Equal(t, time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC), request.ScheduledAt.UTC())
}

func TestParseRequestMinimal(t *testing.T) {
	request, err := ParseRequest([]byte(`{"workflow_id": "wf-2"}`))
	require.NoError(t, err)
	assert.Equal(t, "wf-2", request.WorkflowID)
	assert.Nil(t, request.ScheduledAt)
}

func TestParseRequestMalformed(t *testing.T) {
	_, err := ParseRequest([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseRequestMissingWorkflowID(t *testing.T) {
	_, err := ParseRequest([]byte(`{"input": {"a": 1}}`))
	assert.ErrorIs(t, err, ErrMissingWorkflowID)
}

// persistingAdmitter saves the admitted execution like the engine does, so
// the consumer's overrides have a stored record to update.
type persistingAdmitter struct {
	executions persistence.ExecutionRepository
}

func (a *persistingAdmitter) Execute(ctx context.Context, workflowID string, input map[string]any, triggeredBy, triggerType string) (*models.WorkflowExecution, error) {
	execution := models.NewExecution(workflowID, input, triggeredBy, triggerType)
	if err := a.executions.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

type captureSubmitter struct {
	submitted []*models.WorkflowExecution
}

func (s *captureSubmitter) Submit(execution *models.WorkflowExecution) {
	s.submitted = append(s.submitted, execution)
}

func TestAdmitPersistsPriorityAndScheduleOverrides(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	submitter := &captureSubmitter{}

	consumer := &Consumer{
		queue:      "jobs",
		admitter:   &persistingAdmitter{executions: store.ExecutionRepository()},
		dispatcher: submitter,
		executions: store.ExecutionRepository(),
		logger:     slog.New(slog.DiscardHandler),
	}

	consumer.admit(ctx, `{
		"workflow_id": "wf-1",
		"priority": "critical",
		"scheduled_at": "2026-09-01T08:00:00Z"
	}`)

	require.Len(t, submitter.submitted, 1)

	// The overrides must survive a restart: the stored record, not just
	// the in-memory one handed to the dispatcher, carries them.
	stored, err := store.ExecutionRepository().ExecutionByID(ctx, submitter.submitted[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, stored.Priority)
	assert.Equal(t, time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC), stored.ScheduledAt.UTC())
}

func TestAdmitDropsRejectedRequests(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())
	submitter := &captureSubmitter{}

	consumer := &Consumer{
		queue:      "jobs",
		admitter:   &persistingAdmitter{executions: store.ExecutionRepository()},
		dispatcher: submitter,
		executions: store.ExecutionRepository(),
		logger:     slog.New(slog.DiscardHandler),
	}

	consumer.admit(ctx, `{not json`)
	consumer.admit(ctx, `{"input": {"a": 1}}`)

	assert.Empty(t, submitter.submitted)
}
