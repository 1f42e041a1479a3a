package engine

import "errors"

var (
	// ErrWorkflowInactive rejects execution of a workflow whose status is
	// not active.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrStepDependencyFailed fails a step whose depends_on references a
	// node that is missing from step results or did not succeed. The step
	// never runs and no retry is consumed.
	ErrStepDependencyFailed = errors.New("step dependency failed")

	// ErrStepExecutionFailed marks a step that failed after exhausting its
	// retries. The last attempt's error is wrapped.
	ErrStepExecutionFailed = errors.New("step execution failed")

	// ErrExecutionNotResumable is returned by ResumeApproval when the
	// execution is not parked at the named approval node.
	ErrExecutionNotResumable = errors.New("execution is not parked at an approval node")

	// ErrApprovalTimeout resolves expired approvals as rejections.
	ErrApprovalTimeout = errors.New("approval timed out")
)
