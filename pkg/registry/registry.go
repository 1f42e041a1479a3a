// Package registry holds the action factories available to the execution
// engine and validates node configuration against each factory's schema
// before instantiating an action.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/veilstream/conduit/pkg/protocol"
)

var (
	// ErrActionNotRegistered is returned when an action node references an
	// unknown action type.
	ErrActionNotRegistered = errors.New("action type not registered")

	// ErrInvalidActionConfig is returned when a node's configuration fails
	// the factory's JSON schema.
	ErrInvalidActionConfig = errors.New("invalid action configuration")
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger.With("module", "registry"),
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
}

// CreateAction validates config against the factory schema and builds the
// action.
func (r *Registry) CreateAction(ctx context.Context, actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type %q: %w", actionType, ErrActionNotRegistered)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("action type %q: %w", actionType, err)
	}

	return factory.Create(ctx, config)
}

// ActionIDs returns the registered action types in sorted order.
func (r *Registry) ActionIDs() []string {
	ids := make([]string, 0, len(r.actionFactories))
	for id := range r.actionFactories {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func validateConfig(schema, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidActionConfig, strings.Join(details, "; "))
	}

	return nil
}
