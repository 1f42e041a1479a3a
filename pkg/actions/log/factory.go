package log

import (
	"context"

	"github.com/veilstream/conduit/pkg/protocol"
)

// ActionFactory creates log actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

func (f *ActionFactory) ID() string {
	return "log"
}

func (f *ActionFactory) Name() string {
	return "Log"
}

func (f *ActionFactory) Description() string {
	return "Writes a templated message to the structured log."
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Supports $variable substitution.",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level",
				"default":     "info",
				"enum":        []string{"debug", "info", "warning", "error"},
			},
		},
	}
}
