package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/veilstream/conduit/pkg/events"
	"github.com/veilstream/conduit/pkg/models"
)

// ResumeApproval records a decision for an execution parked at an approval
// node and continues traversal from that node's matching connection. Every
// pending approval row for the node is resolved with the decision: a single
// rejection rejects the gate, a single approval approves it.
func (e *Engine) ResumeApproval(
	ctx context.Context,
	executionID, nodeID string,
	decision models.ApprovalDecision,
	decidedBy string,
) error {
	if decision != models.ApprovalApproved && decision != models.ApprovalRejected {
		return fmt.Errorf("decision must be approved or rejected, got %q", decision)
	}

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusPaused || execution.CurrentNodeID != nodeID {
		return fmt.Errorf("execution %s (status %s, node %s): %w",
			executionID, execution.Status, execution.CurrentNodeID, ErrExecutionNotResumable)
	}

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return err
	}

	node := workflow.NodeByID(nodeID)
	if node == nil {
		return fmt.Errorf("%w: node %s not in workflow %s", models.ErrMalformedGraph, nodeID, workflow.ID)
	}

	if err := e.resolveGate(ctx, execution, node, decision, decidedBy); err != nil {
		return err
	}

	execution.Status = models.ExecutionStatusRunning

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return fmt.Errorf("failed to resume execution: %w", err)
	}

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)
	logger.InfoContext(ctx, "Resuming execution after approval decision",
		"node_id", nodeID, "decision", decision, "decided_by", decidedBy)

	// An approval gate with a rejected decision and no rejected edge is a
	// dead end with a failed last step; traverse handles both outcomes.
	next := e.nextNode(workflow, node, gateLabel(decision), decision == models.ApprovalApproved)
	if next == nil {
		e.finishAtDeadEnd(ctx, workflow, execution, execution.StepResults[node.Name], logger)

		return nil
	}

	e.traverse(ctx, workflow, execution, next)

	return nil
}

// resolveGate records the decision on every pending approval row for the
// gate, injects the gate's step result and publishes the decision events.
// It does not continue traversal.
func (e *Engine) resolveGate(
	ctx context.Context,
	execution *models.WorkflowExecution,
	node *models.Node,
	decision models.ApprovalDecision,
	decidedBy string,
) error {
	if err := e.resolveApprovalRows(ctx, execution.ID, node.ID, decision, decidedBy); err != nil {
		return err
	}

	stepStatus := models.StepStatusFailure
	if decision == models.ApprovalApproved {
		stepStatus = models.StepStatusSuccess
	}

	if execution.StepResults == nil {
		execution.StepResults = make(map[string]*models.StepResult)
	}

	if execution.RuntimeData == nil {
		execution.RuntimeData = make(map[string]any)
	}

	execution.StepResults[node.Name] = &models.StepResult{
		Status:  stepStatus,
		Data:    map[string]any{"decision": string(decision), "decided_by": decidedBy},
		EndedAt: time.Now().UTC(),
	}

	e.appendLog(ctx, execution.ID, node.ID, models.LogLevelInfo,
		fmt.Sprintf("approval %s by %s", decision, decidedBy), nil)

	e.publish(ctx, execution, events.ExecutionResumed{
		BaseEvent: e.baseEvent(events.ExecutionResumedEvent, execution),
		NodeID:    node.ID,
		Decision:  string(decision),
	})
	e.publish(ctx, execution, events.ApprovalDecided{
		BaseEvent: e.baseEvent(events.ApprovalDecidedEvent, execution),
		NodeID:    node.ID,
		Decision:  string(decision),
		DecidedBy: decidedBy,
	})

	return nil
}

// resolveApprovalRows writes the decision onto every pending approval row of
// one gate.
func (e *Engine) resolveApprovalRows(
	ctx context.Context,
	executionID, nodeID string,
	decision models.ApprovalDecision,
	decidedBy string,
) error {
	approvals, err := e.persistence.ApprovalRepository().ApprovalsByExecution(ctx, executionID, nodeID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	for _, approval := range approvals {
		if approval.Decision != models.ApprovalPending {
			continue
		}

		approval.Decision = decision
		approval.DecidedBy = decidedBy
		approval.DecidedAt = &now

		if err := e.persistence.ApprovalRepository().SaveApproval(ctx, approval); err != nil {
			return fmt.Errorf("failed to record approval decision: %w", err)
		}
	}

	return nil
}

func gateLabel(decision models.ApprovalDecision) string {
	if decision == models.ApprovalApproved {
		return models.ConnectionApproved
	}

	return models.ConnectionRejected
}

// ExpireApprovals resolves every approval that passed its deadline as a
// rejection. Executions whose rejected edge continues the graph are put back
// to pending with the current node advanced, and returned so the caller can
// hand them to the dispatcher; the traversal itself never runs here, keeping
// timer goroutines free of workflow logic and resumed runs under the
// dispatcher's cap and ceiling. Gates whose execution is no longer parked
// (cancelled or failed in the meantime) have their rows resolved anyway so
// they are not re-polled forever.
func (e *Engine) ExpireApprovals(ctx context.Context, now time.Time) ([]*models.WorkflowExecution, error) {
	overdue, err := e.persistence.ApprovalRepository().PendingApprovalsBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue approvals: %w", err)
	}

	type gate struct{ executionID, nodeID string }

	seen := make(map[gate]bool)

	var staged []*models.WorkflowExecution

	for _, approval := range overdue {
		key := gate{approval.ExecutionID, approval.NodeID}
		if seen[key] {
			continue
		}

		seen[key] = true

		execution, err := e.expireGate(ctx, approval)
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to expire approval",
				"execution_id", approval.ExecutionID, "node_id", approval.NodeID, "error", err)

			continue
		}

		if execution != nil {
			staged = append(staged, execution)
		}
	}

	return staged, nil
}

// expireGate resolves one overdue gate. It returns the execution when it was
// staged for re-dispatch, nil when the gate was finished or only its rows
// needed resolving.
func (e *Engine) expireGate(ctx context.Context, approval *models.WorkflowApproval) (*models.WorkflowExecution, error) {
	const decidedBy = "system:timeout"

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, approval.ExecutionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusPaused || execution.CurrentNodeID != approval.NodeID {
		// The run moved on without the gate (cancelled, failed, forced).
		// Close the rows so the sweep stops finding them.
		err := e.resolveApprovalRows(ctx, approval.ExecutionID, approval.NodeID,
			models.ApprovalRejected, decidedBy)

		return nil, err
	}

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, err
	}

	node := workflow.NodeByID(approval.NodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: node %s not in workflow %s",
			models.ErrMalformedGraph, approval.NodeID, workflow.ID)
	}

	if err := e.resolveGate(ctx, execution, node, models.ApprovalRejected, decidedBy); err != nil {
		return nil, err
	}

	e.appendLog(ctx, execution.ID, node.ID, models.LogLevelWarning,
		ErrApprovalTimeout.Error(), map[string]any{"expires_at": approval.ExpiresAt})

	logger := e.logger.With("workflow_id", workflow.ID, "execution_id", execution.ID)

	next := e.nextNode(workflow, node, models.ConnectionRejected, false)
	if next == nil {
		e.finishAtDeadEnd(ctx, workflow, execution, execution.StepResults[node.Name], logger)

		return nil, nil
	}

	execution.Status = models.ExecutionStatusPending
	execution.CurrentNodeID = next.ID

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to stage resumed execution: %w", err)
	}

	logger.InfoContext(ctx, "Staged expired approval for dispatch",
		"node_id", approval.NodeID, "next_node_id", next.ID)

	return execution, nil
}
