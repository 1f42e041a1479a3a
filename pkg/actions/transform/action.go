// Package transform implements the data_transformation action: it maps
// runtime data into a new shape by substituting $variables through a
// configured mapping.
package transform

import (
	"context"
	"errors"
	"log/slog"

	"github.com/veilstream/conduit/pkg/protocol"
	"github.com/veilstream/conduit/pkg/template"
)

// ErrMappingsRequired is returned when the configuration has no mappings.
var ErrMappingsRequired = errors.New("missing or invalid 'mappings' in configuration")

// Action produces an output map by substituting runtime data into each
// mapping value. Nested maps and lists are walked recursively.
type Action struct {
	Mappings map[string]any
}

// NewAction creates an Action from node configuration.
func NewAction(config map[string]any) (*Action, error) {
	mappings, ok := config["mappings"].(map[string]any)
	if !ok || len(mappings) == 0 {
		return nil, ErrMappingsRequired
	}

	return &Action{Mappings: mappings}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.With("module", "transform_action").
		InfoContext(ctx, "Executing data_transformation action", "keys", len(a.Mappings))

	result, _ := template.SubstituteDeep(a.Mappings, executionCtx.RuntimeData).(map[string]any)

	return result, nil
}
