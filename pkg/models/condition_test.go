package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		operator   ConditionOperator
		left       string
		right      string
	}{
		{"equals", "$status equals 'approved'", OperatorEquals, "$status", "'approved'"},
		{"contains", "$tags contains urgent", OperatorContains, "$tags", "urgent"},
		{"greater than", "$count greater_than 10", OperatorGreaterThan, "$count", "10"},
		{"no operator", "just some text", OperatorNone, "just some text", ""},
		{"empty expression", "", OperatorNone, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := ParseCondition(tt.expression)
			require.NotNil(t, cond)
			assert.Equal(t, tt.operator, cond.Operator)
			assert.Equal(t, tt.left, cond.Left)
			assert.Equal(t, tt.right, cond.Right)
		})
	}
}

func TestConditionEvaluateGreaterThan(t *testing.T) {
	cond := ParseCondition("$x greater_than $y")

	result, err := cond.Evaluate(map[string]any{"x": "15", "y": "10"})
	require.NoError(t, err)
	assert.True(t, result)

	result, err = cond.Evaluate(map[string]any{"x": "10", "y": "15"})
	require.NoError(t, err)
	assert.False(t, result)

	result, err = cond.Evaluate(map[string]any{"x": float64(7), "y": float64(7)})
	require.NoError(t, err)
	assert.False(t, result, "equal values are not greater")
}

func TestConditionEvaluateGreaterThanFailsClosed(t *testing.T) {
	cond := ParseCondition("$x greater_than 10")

	result, err := cond.Evaluate(map[string]any{"x": "not-a-number"})
	assert.Error(t, err)
	assert.False(t, result, "unparsable operand must evaluate to false")

	// Missing variable leaves the token in place, which is not numeric.
	result, err = cond.Evaluate(map[string]any{})
	assert.Error(t, err)
	assert.False(t, result)
}

func TestConditionEvaluateEquals(t *testing.T) {
	cond := ParseCondition("$status equals 'approved'")

	result, err := cond.Evaluate(map[string]any{"status": "approved"})
	require.NoError(t, err)
	assert.True(t, result)

	result, err = cond.Evaluate(map[string]any{"status": "rejected"})
	require.NoError(t, err)
	assert.False(t, result)
}

func TestConditionEvaluateEqualsNumericFormatting(t *testing.T) {
	// JSON decoding turns numbers into float64; 5 must compare equal to "5".
	cond := ParseCondition("$count equals 5")

	result, err := cond.Evaluate(map[string]any{"count": float64(5)})
	require.NoError(t, err)
	assert.True(t, result)
}

func TestConditionEvaluateContains(t *testing.T) {
	cond := ParseCondition("$message contains \"error\"")

	result, err := cond.Evaluate(map[string]any{"message": "disk error on node 3"})
	require.NoError(t, err)
	assert.True(t, result)

	result, err = cond.Evaluate(map[string]any{"message": "all good"})
	require.NoError(t, err)
	assert.False(t, result)
}

func TestConditionEvaluateNoOperatorAlwaysTrue(t *testing.T) {
	cond := ParseCondition("anything at all")

	result, err := cond.Evaluate(nil)
	require.NoError(t, err)
	assert.True(t, result)
}
