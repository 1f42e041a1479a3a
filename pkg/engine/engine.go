// Package engine walks workflow graphs node by node, persisting execution
// state at every transition. One engine instance is shared by all workers;
// each execution's record is owned exclusively by the goroutine running it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veilstream/conduit/pkg/eventbus"
	"github.com/veilstream/conduit/pkg/events"
	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/otelhelper"
	"github.com/veilstream/conduit/pkg/persistence"
	"github.com/veilstream/conduit/pkg/protocol"
	"github.com/veilstream/conduit/pkg/registry"
)

// Engine executes workflows. The graph store is read-only during execution;
// all mutable run state lives on the WorkflowExecution record.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	translator  protocol.Translator
	notifier    protocol.Notifier
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer

	// backoff returns the pause before retry attempt n (n starts at 1).
	// Swapped out in tests.
	backoff func(attempt int) time.Duration
}

func NewEngine(
	p persistence.Persistence,
	r *registry.Registry,
	translator protocol.Translator,
	notifier protocol.Notifier,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		persistence: p,
		registry:    r,
		translator:  translator,
		notifier:    notifier,
		eventBus:    eventBus,
		logger:      logger.With("module", "engine"),
		tracer:      otel.Tracer("conduit/engine"),
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// Execute admits a new execution for the workflow. Definition problems
// (unknown workflow, inactive status, malformed graph) reject the call
// synchronously; everything that happens after admission is observed through
// the execution record and its log trail.
func (e *Engine) Execute(
	ctx context.Context,
	workflowID string,
	input map[string]any,
	triggeredBy, triggerType string,
) (*models.WorkflowExecution, error) {
	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s has status %s: %w", workflowID, workflow.Status, ErrWorkflowInactive)
	}

	if err := workflow.ValidateGraph(); err != nil {
		return nil, err
	}

	execution := models.NewExecution(workflowID, input, triggeredBy, triggerType)

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to admit execution: %w", err)
	}

	e.logger.InfoContext(ctx, "Admitted execution",
		"workflow_id", workflowID, "execution_id", execution.ID, "trigger_type", triggerType)

	return execution, nil
}

// Run performs the full graph traversal for an admitted execution. Per-step
// failures are recorded on the execution and never returned: a failing run
// ends with status failed, not with an error. Run only errors when the
// workflow definition cannot be loaded at all.
func (e *Engine) Run(ctx context.Context, execution *models.WorkflowExecution) error {
	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", execution.WorkflowID, err)
	}

	if execution.RuntimeData == nil {
		execution.RuntimeData = make(map[string]any)
	}

	if execution.StepResults == nil {
		execution.StepResults = make(map[string]*models.StepResult)
	}

	// A set current node means the run resumes: a crash-recovery restore or
	// a staged approval resumption re-entering through the dispatcher.
	resuming := execution.CurrentNodeID != ""

	var node *models.Node
	if resuming {
		node = workflow.NodeByID(execution.CurrentNodeID)
		if node == nil {
			return fmt.Errorf("%w: execution %s references unknown node %s",
				models.ErrMalformedGraph, execution.ID, execution.CurrentNodeID)
		}
	} else {
		node, err = workflow.StartNode()
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusRunning
	execution.CurrentNodeID = node.ID

	if execution.StartedAt == nil {
		execution.StartedAt = &now
	}

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to mark execution running: %w", err)
	}

	if !resuming {
		e.publish(ctx, execution, events.ExecutionStarted{
			BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, execution),
			TriggeredBy: execution.TriggeredBy,
			TriggerType: execution.TriggerType,
			InputData:   execution.InputData,
		})
	}

	e.traverse(ctx, workflow, execution, node)

	return nil
}

// traverse walks the graph from node until an end node, a dead end, a parked
// approval, a failure or cancellation. The execution record is checkpointed
// at every transition.
func (e *Engine) traverse(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	node *models.Node,
) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "conduit.execution",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)

	var lastResult *models.StepResult

	for node != nil {
		if e.cancelled(ctx, execution) {
			e.finishCancelled(ctx, execution, logger)

			return
		}

		execution.CurrentNodeID = node.ID
		if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
			logger.ErrorContext(ctx, "Failed to checkpoint execution", "node_id", node.ID, "error", err)
		}

		e.appendLog(ctx, execution.ID, node.ID, models.LogLevelInfo,
			fmt.Sprintf("executing node %s (%s)", node.Name, node.Type), nil)

		if node.Type == models.NodeTypeEnd {
			e.finishCompleted(ctx, workflow, execution, node, logger)

			return
		}

		started := time.Now()
		result, label, park := e.processNode(ctx, workflow, execution, node, logger)
		duration := time.Since(started)

		execution.StepResults[node.Name] = result
		lastResult = result

		if park {
			e.parkAtApproval(ctx, execution, node, logger)

			return
		}

		if result.Succeeded() {
			e.publish(ctx, execution, events.NodeFinished{
				BaseEvent:  e.baseEvent(events.NodeFinishedEvent, execution),
				NodeID:     node.ID,
				NodeName:   node.Name,
				OutputData: result.Data,
				Duration:   duration,
			})
		} else {
			e.publish(ctx, execution, events.NodeFailed{
				BaseEvent: e.baseEvent(events.NodeFailedEvent, execution),
				NodeID:    node.ID,
				NodeName:  node.Name,
				Error:     result.Error,
				Attempts:  result.Attempts,
				Duration:  duration,
			})
			e.appendLog(ctx, execution.ID, node.ID, models.LogLevelError, result.Error,
				map[string]any{"attempts": result.Attempts})

			if workflow.Notifications.OnStepFailure {
				e.notify(ctx, protocol.Notification{
					Kind:         protocol.NotificationStepFailure,
					WorkflowID:   workflow.ID,
					WorkflowName: workflow.Name,
					ExecutionID:  execution.ID,
					NodeID:       node.ID,
					Message:      fmt.Sprintf("step %s failed: %s", node.Name, result.Error),
				}, logger)
			}
		}

		node = e.nextNode(workflow, node, label, result.Succeeded())
	}

	// Dead end: no matching outgoing connection. The run terminates
	// silently with the outcome of the last step.
	e.finishAtDeadEnd(ctx, workflow, execution, lastResult, logger)
}

// nextNode resolves the outgoing connection for a processor result. The
// label edge wins, then the unlabeled default edge. Successful results may
// additionally fall through to the first connection in definition order; a
// failed step with no failure edge is a dead end, never a silent continue.
func (e *Engine) nextNode(workflow *models.Workflow, node *models.Node, label string, succeeded bool) *models.Node {
	connections := workflow.ConnectionsFrom(node.ID)
	if len(connections) == 0 {
		return nil
	}

	for _, conn := range connections {
		if conn.Condition == label {
			return workflow.NodeByID(conn.ToNodeID)
		}
	}

	for _, conn := range connections {
		if conn.Condition == "" {
			return workflow.NodeByID(conn.ToNodeID)
		}
	}

	if succeeded {
		return workflow.NodeByID(connections[0].ToNodeID)
	}

	return nil
}

func (e *Engine) cancelled(ctx context.Context, execution *models.WorkflowExecution) bool {
	if ctx.Err() != nil {
		return true
	}

	// Cancellation is signalled by an external writer flipping the stored
	// status; the in-memory record is otherwise owned by this worker.
	stored, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, execution.ID)
	if err != nil {
		return false
	}

	return stored.Status == models.ExecutionStatusCancelled
}

func (e *Engine) finishCompleted(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) {
	execution.StepResults[node.Name] = &models.StepResult{
		Status:  models.StepStatusSuccess,
		EndedAt: time.Now().UTC(),
	}
	execution.Output = execution.RuntimeData
	e.seal(ctx, execution, models.ExecutionStatusCompleted, "")

	logger.InfoContext(ctx, "Execution completed",
		"node_id", node.ID, "duration", execution.ExecutionTime)

	e.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, execution),
		Output:    execution.Output,
		Duration:  execution.ExecutionTime,
	})

	if workflow.Notifications.OnCompletion {
		e.notify(ctx, protocol.Notification{
			Kind:         protocol.NotificationCompletion,
			WorkflowID:   workflow.ID,
			WorkflowName: workflow.Name,
			ExecutionID:  execution.ID,
			Message:      fmt.Sprintf("workflow %s completed", workflow.Name),
		}, logger)
	}
}

func (e *Engine) finishAtDeadEnd(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	lastResult *models.StepResult,
	logger *slog.Logger,
) {
	if lastResult.Succeeded() {
		execution.Output = execution.RuntimeData
		e.seal(ctx, execution, models.ExecutionStatusCompleted, "")
		logger.InfoContext(ctx, "Execution completed at dead end", "node_id", execution.CurrentNodeID)

		e.publish(ctx, execution, events.ExecutionCompleted{
			BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, execution),
			Output:    execution.Output,
			Duration:  execution.ExecutionTime,
		})

		return
	}

	errorDetails := "execution ended without a matching connection"
	if lastResult != nil && lastResult.Error != "" {
		errorDetails = lastResult.Error
	}

	e.failExecution(ctx, workflow, execution, errorDetails, logger)
}

func (e *Engine) failExecution(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	errorDetails string,
	logger *slog.Logger,
) {
	e.seal(ctx, execution, models.ExecutionStatusFailed, errorDetails)

	logger.ErrorContext(ctx, "Execution failed",
		"node_id", execution.CurrentNodeID, "error", errorDetails)

	e.appendLog(ctx, execution.ID, "", models.LogLevelError, errorDetails, nil)

	e.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent: e.baseEvent(events.ExecutionFailedEvent, execution),
		NodeID:    execution.CurrentNodeID,
		Error:     errorDetails,
		Duration:  execution.ExecutionTime,
	})

	if workflow != nil && workflow.Notifications.OnFailure {
		e.notify(ctx, protocol.Notification{
			Kind:         protocol.NotificationFailure,
			WorkflowID:   workflow.ID,
			WorkflowName: workflow.Name,
			ExecutionID:  execution.ID,
			Message:      fmt.Sprintf("workflow %s failed: %s", workflow.Name, errorDetails),
		}, logger)
	}
}

func (e *Engine) finishCancelled(ctx context.Context, execution *models.WorkflowExecution, logger *slog.Logger) {
	e.seal(ctx, execution, models.ExecutionStatusCancelled, "")

	logger.InfoContext(ctx, "Execution cancelled", "node_id", execution.CurrentNodeID)
	e.appendLog(ctx, execution.ID, "", models.LogLevelWarning, "execution cancelled", nil)

	e.publish(ctx, execution, events.ExecutionCancelled{
		BaseEvent: e.baseEvent(events.ExecutionCancelledEvent, execution),
	})
}

func (e *Engine) parkAtApproval(
	ctx context.Context,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) {
	execution.Status = models.ExecutionStatusPaused
	execution.CurrentNodeID = node.ID

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to park execution", "node_id", node.ID, "error", err)
	}

	logger.InfoContext(ctx, "Execution parked awaiting approval", "node_id", node.ID)
	e.appendLog(ctx, execution.ID, node.ID, models.LogLevelInfo, "awaiting approval", nil)

	e.publish(ctx, execution, events.ExecutionPaused{
		BaseEvent: e.baseEvent(events.ExecutionPausedEvent, execution),
		NodeID:    node.ID,
	})
}

// seal writes a terminal status along with completion bookkeeping.
func (e *Engine) seal(ctx context.Context, execution *models.WorkflowExecution, status models.ExecutionStatus, errorDetails string) {
	now := time.Now().UTC()
	execution.Status = status
	execution.ErrorDetails = errorDetails
	execution.CompletedAt = &now

	if execution.StartedAt != nil {
		execution.ExecutionTime = now.Sub(*execution.StartedAt)
	}

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist terminal execution state",
			"execution_id", execution.ID, "status", status, "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, execution *models.WorkflowExecution) events.BaseEvent {
	return events.BaseEvent{
		ID:          "evt-" + execution.ID + "-" + string(eventType),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  execution.WorkflowID,
		ExecutionID: execution.ID,
	}
}

// publish is fire-and-forget: a broken event bus never fails a run.
func (e *Engine) publish(ctx context.Context, execution *models.WorkflowExecution, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, execution.WorkflowID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "execution_id", execution.ID, "error", err)
	}
}

// notify is best effort; failures are logged and swallowed.
func (e *Engine) notify(ctx context.Context, notification protocol.Notification, logger *slog.Logger) {
	if e.notifier == nil {
		return
	}

	if err := e.notifier.Notify(ctx, notification); err != nil {
		logger.WarnContext(ctx, "Failed to send notification",
			"kind", notification.Kind, "error", err)
	}
}

// appendLog writes an audit trail entry. Log writes are best effort and must
// not abort the step that triggered them.
func (e *Engine) appendLog(ctx context.Context, executionID, nodeID string, level models.LogLevel, message string, details map[string]any) {
	entry := models.NewExecutionLog(executionID, nodeID, level, message, details)

	if err := e.persistence.LogRepository().AppendLog(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "Failed to append execution log",
			"execution_id", executionID, "error", err)
	}
}
