package transform

import (
	"context"

	"github.com/veilstream/conduit/pkg/protocol"
)

// ActionFactory creates data_transformation actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

func (f *ActionFactory) ID() string {
	return "data_transformation"
}

func (f *ActionFactory) Name() string {
	return "Data Transformation"
}

func (f *ActionFactory) Description() string {
	return "Maps runtime data into a new shape using $variable substitution."
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mappings": map[string]any{
				"type":        "object",
				"description": "Output keys mapped to values. String values support $variable substitution and nested objects are walked recursively.",
				"examples": []map[string]any{
					{"full_name": "$first_name $last_name", "source": "signup"},
				},
			},
		},
		"required": []string{"mappings"},
	}
}
