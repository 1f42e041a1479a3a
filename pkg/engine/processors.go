package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/veilstream/conduit/pkg/events"
	"github.com/veilstream/conduit/pkg/models"
	"github.com/veilstream/conduit/pkg/otelhelper"
	"github.com/veilstream/conduit/pkg/protocol"
)

// processNode runs the processor matching the node type. It returns the step
// result, the connection label to follow, and whether the execution parks at
// this node awaiting an external decision.
func (e *Engine) processNode(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) (result *models.StepResult, label string, park bool) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "conduit.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	logger = logger.With("node_id", node.ID, "node_type", node.Type)

	switch node.Type {
	case models.NodeTypeStart:
		result, label = e.processStart(execution), models.ConnectionSuccess
	case models.NodeTypeAction:
		result, label = e.processAction(ctx, execution, node, logger)
	case models.NodeTypeCondition:
		result, label = e.processCondition(ctx, execution, node, logger)
	case models.NodeTypeApproval:
		result, label, park = e.processApproval(ctx, workflow, execution, node, logger)
	case models.NodeTypeLocalization:
		result, label = e.processLocalization(ctx, execution, node, logger)
	case models.NodeTypeSchedule:
		result, label = e.processSchedule(execution, node), models.ConnectionSuccess
	default:
		result = failedStep(fmt.Sprintf("unknown node type %q", node.Type), 0)
		label = models.ConnectionFailure
	}

	if !result.Succeeded() && result.Error != "" {
		otelhelper.SetNodeError(span, fmt.Errorf("%s", result.Error), node.ID, string(node.Type))
	}

	return result, label, park
}

// processStart merges the execution's input data into runtime data.
func (e *Engine) processStart(execution *models.WorkflowExecution) *models.StepResult {
	for key, value := range execution.InputData {
		execution.RuntimeData[key] = value
	}

	return &models.StepResult{
		Status:  models.StepStatusSuccess,
		Data:    execution.InputData,
		EndedAt: time.Now().UTC(),
	}
}

// processAction gates on depends_on, then runs the registered action with
// retries and exponential backoff. RetryCount is additional attempts beyond
// the first; a failed dependency consumes no attempt at all.
func (e *Engine) processAction(
	ctx context.Context,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) (*models.StepResult, string) {
	cfg := node.Action
	if cfg == nil {
		return failedStep("action node has no action configuration", 0), models.ConnectionFailure
	}

	for _, dependency := range cfg.DependsOn {
		dep, ok := execution.StepResults[dependency]
		if !ok || !dep.Succeeded() {
			err := fmt.Errorf("%w: %q did not succeed", ErrStepDependencyFailed, dependency)
			logger.WarnContext(ctx, "Skipping action, dependency not satisfied", "dependency", dependency)

			return failedStep(err.Error(), 0), models.ConnectionFailure
		}
	}

	action, err := e.registry.CreateAction(ctx, cfg.ActionType, cfg.Config)
	if err != nil {
		return failedStep(err.Error(), 0), models.ConnectionFailure
	}

	attempts := cfg.RetryCount + 1

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying action",
				"action_type", cfg.ActionType, "attempt", attempt, "of", attempts)

			select {
			case <-time.After(e.backoff(attempt - 1)):
			case <-ctx.Done():
				return failedStep(ctx.Err().Error(), attempt-1), models.ConnectionFailure
			}
		}

		output, err := e.runAttempt(ctx, execution, node, action, logger)
		if err == nil {
			for key, value := range output {
				execution.RuntimeData[key] = value
			}

			return &models.StepResult{
				Status:   models.StepStatusSuccess,
				Data:     output,
				Attempts: attempt,
				EndedAt:  time.Now().UTC(),
			}, models.ConnectionSuccess
		}

		lastErr = err
	}

	failure := fmt.Errorf("%w: %s", ErrStepExecutionFailed, lastErr)

	return failedStep(failure.Error(), attempts), models.ConnectionFailure
}

// runAttempt executes one action attempt under the node's timeout, if any.
// The timeout is a context deadline: the action is cancelled cooperatively,
// not preempted.
func (e *Engine) runAttempt(
	ctx context.Context,
	execution *models.WorkflowExecution,
	node *models.Node,
	action protocol.Action,
	logger *slog.Logger,
) (map[string]any, error) {
	if node.Action.TimeoutSeconds > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(node.Action.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	return action.Execute(ctx, protocol.ExecutionContext{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		NodeID:      node.ID,
		RuntimeData: execution.RuntimeData,
		StepResults: execution.StepResults,
	}, logger)
}

// processCondition evaluates the node's expression against runtime data. It
// fails closed: evaluation problems are logged as warnings and route the run
// down the false branch, never up to the caller.
func (e *Engine) processCondition(
	ctx context.Context,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) (*models.StepResult, string) {
	expression := ""
	if node.Condition != nil {
		expression = node.Condition.Expression
	}

	condition := models.ParseCondition(expression)

	outcome, err := condition.Evaluate(execution.RuntimeData)
	if err != nil {
		logger.WarnContext(ctx, "Condition evaluation failed, treating as false",
			"expression", expression, "error", err)
		e.appendLog(ctx, execution.ID, node.ID, models.LogLevelWarning,
			fmt.Sprintf("condition evaluation failed: %v", err), nil)
	}

	label := models.ConnectionFalse
	if outcome {
		label = models.ConnectionTrue
	}

	return &models.StepResult{
		Status:  models.StepStatusSuccess,
		Data:    map[string]any{"result": outcome, "expression": expression},
		EndedAt: time.Now().UTC(),
	}, label
}

// processApproval creates one approval request per required approver and
// parks the execution. A node with no approvers auto-approves.
func (e *Engine) processApproval(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) (*models.StepResult, string, bool) {
	cfg := node.Approval
	if cfg == nil || len(cfg.RequiredFrom) == 0 {
		logger.WarnContext(ctx, "Approval node has no approvers configured, auto-approving")
		e.appendLog(ctx, execution.ID, node.ID, models.LogLevelWarning,
			"no approvers configured, auto-approving", nil)

		return &models.StepResult{
			Status:  models.StepStatusSuccess,
			Data:    map[string]any{"auto_approved": true},
			EndedAt: time.Now().UTC(),
		}, models.ConnectionApproved, false
	}

	for _, approver := range cfg.RequiredFrom {
		approval := models.NewApproval(execution.ID, node.ID, approver, cfg, execution.RuntimeData)

		if err := e.persistence.ApprovalRepository().SaveApproval(ctx, approval); err != nil {
			return failedStep(fmt.Sprintf("failed to create approval request: %v", err), 0),
				models.ConnectionFailure, false
		}

		e.publish(ctx, execution, events.ApprovalRequested{
			BaseEvent:    e.baseEvent(events.ApprovalRequestedEvent, execution),
			NodeID:       node.ID,
			ApprovalID:   approval.ID,
			RequiredFrom: approver,
			ExpiresAt:    approval.ExpiresAt,
		})

		e.notify(ctx, protocol.Notification{
			Kind:         protocol.NotificationApproval,
			WorkflowID:   workflow.ID,
			WorkflowName: workflow.Name,
			ExecutionID:  execution.ID,
			NodeID:       node.ID,
			Message:      fmt.Sprintf("approval requested from %s for workflow %s", approver, workflow.Name),
			Details:      map[string]any{"approval_id": approval.ID, "expires_at": approval.ExpiresAt},
		}, logger)
	}

	return &models.StepResult{
		Status:  models.StepStatusPending,
		EndedAt: time.Now().UTC(),
	}, "", true
}

// processLocalization translates the configured content into every target
// language except the source and stores the results under
// runtime_data["translations"].
func (e *Engine) processLocalization(
	ctx context.Context,
	execution *models.WorkflowExecution,
	node *models.Node,
	logger *slog.Logger,
) (*models.StepResult, string) {
	cfg := node.Localization
	if cfg == nil || !cfg.Enabled {
		return &models.StepResult{
			Status:  models.StepStatusSkipped,
			EndedAt: time.Now().UTC(),
		}, models.ConnectionSuccess
	}

	if e.translator == nil {
		return failedStep("localization requested but no translator configured", 0), models.ConnectionFailure
	}

	contentKey := cfg.ContentKey
	if contentKey == "" {
		contentKey = "content"
	}

	content, _ := execution.RuntimeData[contentKey].(string)

	translations := make(map[string]any, len(cfg.TargetLanguages))

	for _, target := range cfg.TargetLanguages {
		if target == cfg.SourceLanguage {
			continue
		}

		translated, err := e.translator.Translate(ctx, content, cfg.SourceLanguage, target)
		if err != nil {
			logger.ErrorContext(ctx, "Translation failed", "target_language", target, "error", err)

			return failedStep(fmt.Sprintf("translation to %s failed: %v", target, err), 0),
				models.ConnectionFailure
		}

		translations[target] = translated
	}

	execution.RuntimeData["translations"] = translations

	return &models.StepResult{
		Status:  models.StepStatusSuccess,
		Data:    map[string]any{"translations": translations},
		EndedAt: time.Now().UTC(),
	}, models.ConnectionSuccess
}

// processSchedule records an advisory scheduled_for timestamp. The run
// continues immediately; delay nodes do not suspend traversal.
func (e *Engine) processSchedule(execution *models.WorkflowExecution, node *models.Node) *models.StepResult {
	seconds := 0
	if node.Delay != nil {
		seconds = node.Delay.Seconds
	}

	scheduledFor := time.Now().UTC().Add(time.Duration(seconds) * time.Second)
	execution.RuntimeData["scheduled_for"] = scheduledFor.Format(time.RFC3339)

	return &models.StepResult{
		Status:  models.StepStatusSuccess,
		Data:    map[string]any{"scheduled_for": scheduledFor.Format(time.RFC3339), "delay_seconds": seconds},
		EndedAt: time.Now().UTC(),
	}
}

func failedStep(message string, attempts int) *models.StepResult {
	return &models.StepResult{
		Status:   models.StepStatusFailure,
		Error:    message,
		Attempts: attempts,
		EndedAt:  time.Now().UTC(),
	}
}
