// Package protocol defines the contracts between the execution engine and
// its pluggable collaborators: actions, translators and notifiers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/veilstream/conduit/pkg/models"
)

// ExecutionContext is the read-only view of a running execution handed to an
// action. RuntimeData is a snapshot; actions return their output instead of
// mutating it.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string
	RuntimeData map[string]any
	StepResults map[string]*models.StepResult
}

// Action is one executable unit behind an action node. Implementations must
// honor ctx cancellation; the engine wraps each attempt in a deadline when
// the node configures a timeout.
type Action interface {
	Execute(ctx context.Context, executionCtx ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// ActionFactory builds actions of one type from node configuration and
// describes that configuration so the registry can validate it up front.
type ActionFactory interface {
	// ID is the action type referenced by action nodes, e.g. "api_call".
	ID() string

	// Name returns the human-readable name of the action.
	Name() string

	// Description returns a brief description of the action.
	Description() string

	// Schema returns the JSON schema the registry validates node
	// configuration against before Create is called.
	Schema() map[string]any

	// Create builds an action from validated configuration.
	Create(ctx context.Context, config map[string]any) (Action, error)
}
