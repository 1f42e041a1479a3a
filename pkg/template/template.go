// Package template substitutes $variable tokens in workflow configuration
// strings with values from the execution's runtime data.
package template

import (
	"fmt"
	"regexp"
	"strconv"
)

var variablePattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Substitute replaces every $name token in input with the value stored under
// "name" in data. Unknown variables are left untouched so that downstream
// parsing surfaces them instead of silently producing empty strings.
func Substitute(input string, data map[string]any) string {
	if input == "" || len(data) == 0 {
		return input
	}

	return variablePattern.ReplaceAllStringFunc(input, func(token string) string {
		name := token[1:]

		value, ok := data[name]
		if !ok {
			return token
		}

		return FormatValue(value)
	})
}

// SubstituteDeep walks a configuration value and substitutes variables in
// every string it contains. Maps and slices are copied, other values are
// returned as is.
func SubstituteDeep(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		return Substitute(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = SubstituteDeep(item, data)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = SubstituteDeep(item, data)
		}

		return out
	default:
		return value
	}
}

// FormatValue renders a runtime data value as the string form used inside
// substituted configuration. Floats holding integral values print without a
// trailing fraction so numeric comparisons behave as authors expect.
func FormatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}

		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
