package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/protocol"
)

func TestExecuteRendersMessage(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	action, err := NewAction(map[string]any{"message": "processed $count items"})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{
		ExecutionID: "exec-1",
		RuntimeData: map[string]any{"count": float64(3)},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, "processed 3 items", result["message"])
	assert.Equal(t, "info", result["level"])
	assert.Contains(t, buf.String(), "processed 3 items")
}

func TestExecuteLevelDefaultsToInfo(t *testing.T) {
	action, err := NewAction(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "info", action.Level)

	action, err = NewAction(map[string]any{"level": "error"})
	require.NoError(t, err)
	assert.Equal(t, "error", action.Level)
}
