package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/veilstream/conduit/pkg/template"
)

// ConditionOperator is one of the three comparison operators the condition
// language supports. There is no precedence and no boolean combinator: a
// condition is a single binary comparison.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"

	// OperatorNone marks an expression containing no recognized operator.
	// Such a condition always evaluates to true, turning the node into an
	// unconditional pass. Kept for compatibility with existing workflow
	// definitions; see DESIGN.md before relying on it.
	OperatorNone ConditionOperator = ""
)

// Condition is a condition expression parsed once at definition time and
// evaluated against runtime data on every run.
type Condition struct {
	Operator ConditionOperator `json:"operator"`
	Left     string            `json:"left"`
	Right    string            `json:"right"`
}

// operators in match order. An expression containing several keywords splits
// on the first one found here.
var operators = []ConditionOperator{OperatorEquals, OperatorContains, OperatorGreaterThan}

// ParseCondition splits an expression into operator and operands. Operands
// keep their $variable tokens; substitution happens at evaluation time.
// Parsing never fails: an expression with no recognized operator yields an
// always-true condition.
func ParseCondition(expression string) *Condition {
	for _, op := range operators {
		keyword := " " + string(op) + " "

		idx := strings.Index(expression, keyword)
		if idx < 0 {
			continue
		}

		return &Condition{
			Operator: op,
			Left:     strings.TrimSpace(expression[:idx]),
			Right:    strings.TrimSpace(expression[idx+len(keyword):]),
		}
	}

	return &Condition{Operator: OperatorNone, Left: strings.TrimSpace(expression)}
}

// Evaluate resolves both operands against runtime data and applies the
// operator. It fails closed: any evaluation problem yields false together
// with an error describing it, which callers log as a warning and never
// propagate.
func (c *Condition) Evaluate(data map[string]any) (bool, error) {
	if c.Operator == OperatorNone {
		return true, nil
	}

	left := template.Substitute(c.Left, data)
	right := template.Substitute(c.Right, data)

	switch c.Operator {
	case OperatorEquals:
		return stripQuotes(left) == stripQuotes(right), nil
	case OperatorContains:
		return strings.Contains(stripQuotes(left), stripQuotes(right)), nil
	case OperatorGreaterThan:
		leftNum, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
		if err != nil {
			return false, fmt.Errorf("left operand %q is not numeric: %w", left, err)
		}

		rightNum, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
		if err != nil {
			return false, fmt.Errorf("right operand %q is not numeric: %w", right, err)
		}

		return leftNum > rightNum, nil
	default:
		return false, fmt.Errorf("unknown operator %q", c.Operator)
	}
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}

	return s
}
