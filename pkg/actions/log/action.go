// Package log implements the log action, a debugging aid that writes a
// templated message to the structured log.
package log

import (
	"context"
	"log/slog"

	"github.com/veilstream/conduit/pkg/protocol"
	"github.com/veilstream/conduit/pkg/template"
)

// Action logs a message rendered against runtime data.
type Action struct {
	Message string
	Level   string
}

// NewAction creates an Action from node configuration.
func NewAction(config map[string]any) (*Action, error) {
	message, _ := config["message"].(string)

	level, _ := config["level"].(string)
	if level == "" {
		level = "info"
	}

	return &Action{Message: message, Level: level}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	message := template.Substitute(a.Message, executionCtx.RuntimeData)

	logger = logger.With("module", "log_action", "execution_id", executionCtx.ExecutionID)

	switch a.Level {
	case "error":
		logger.ErrorContext(ctx, message)
	case "warning":
		logger.WarnContext(ctx, message)
	case "debug":
		logger.DebugContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return map[string]any{"message": message, "level": a.Level}, nil
}
