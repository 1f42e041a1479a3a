package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	data := map[string]any{
		"name":  "orbit",
		"count": float64(5),
		"ratio": 2.5,
		"ok":    true,
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain string untouched", "no variables here", "no variables here"},
		{"single variable", "hello $name", "hello orbit"},
		{"integral float prints without fraction", "count is $count", "count is 5"},
		{"fractional float", "ratio is $ratio", "ratio is 2.5"},
		{"boolean", "flag=$ok", "flag=true"},
		{"unknown variable left as is", "missing $nope", "missing $nope"},
		{"multiple variables", "$name:$count", "orbit:5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Substitute(tt.input, data))
		})
	}
}

func TestSubstituteEmptyData(t *testing.T) {
	assert.Equal(t, "$name", Substitute("$name", nil))
}

func TestSubstituteDeep(t *testing.T) {
	data := map[string]any{"city": "lisbon", "temp": float64(21)}

	config := map[string]any{
		"url": "https://api.example.com/weather?q=$city",
		"headers": map[string]any{
			"X-Temp": "$temp",
		},
		"tags":  []any{"$city", "static"},
		"limit": 10,
	}

	out, ok := SubstituteDeep(config, data).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "https://api.example.com/weather?q=lisbon", out["url"])
	assert.Equal(t, "21", out["headers"].(map[string]any)["X-Temp"])
	assert.Equal(t, []any{"lisbon", "static"}, out["tags"])
	assert.Equal(t, 10, out["limit"])

	// Original config must not be mutated.
	assert.Equal(t, "https://api.example.com/weather?q=$city", config["url"])
}
