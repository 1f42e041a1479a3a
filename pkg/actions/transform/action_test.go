package transform

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/protocol"
)

func TestNewActionRequiresMappings(t *testing.T) {
	_, err := NewAction(map[string]any{})
	assert.ErrorIs(t, err, ErrMappingsRequired)
}

func TestExecuteSubstitutesMappings(t *testing.T) {
	action, err := NewAction(map[string]any{
		"mappings": map[string]any{
			"full_name": "$first_name $last_name",
			"source":    "signup",
			"nested": map[string]any{
				"greeting": "hello $first_name",
			},
		},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{
		RuntimeData: map[string]any{"first_name": "Ada", "last_name": "Lovelace"},
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", result["full_name"])
	assert.Equal(t, "signup", result["source"])

	nested, ok := result["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello Ada", nested["greeting"])
}

func TestExecuteLeavesUnknownVariables(t *testing.T) {
	action, err := NewAction(map[string]any{
		"mappings": map[string]any{"value": "$missing"},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{
		RuntimeData: map[string]any{"other": 1},
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, "$missing", result["value"])
}
