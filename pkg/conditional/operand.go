// Package conditional implements expression evaluation, loop continuation logic
// and branch-path selection for workflow graph execution.
package conditional

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// ResolveOperand turns an operand string into a value against the variable map.
// The resolution order is fixed:
//  1. "{{dotted.path}}" performs a nested lookup; a missing path yields nil
//  2. an exact key match in vars
//  3. a quoted string literal
//  4. a numeric literal
//  5. the true/false/null keywords
//  6. fallback: the raw text as a literal string
func ResolveOperand(operand string, vars map[string]any) any {
	trimmed := strings.TrimSpace(operand)

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		path := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		value, _ := models.LookupPath(vars, path)

		return value
	}

	if value, ok := vars[trimmed]; ok {
		return value
	}

	if len(trimmed) >= 2 {
		if (trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') ||
			(trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') {
			return trimmed[1 : len(trimmed)-1]
		}
	}

	if num, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return num
	}

	switch trimmed {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	return trimmed
}

// Truthy coerces a value to a boolean the way condition-less guards expect.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return v != ""
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}

// toNumber coerces a value to float64. The second return reports success.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return num, true
	default:
		return 0, false
	}
}

// toString coerces a value to its string form. nil becomes the empty string.
func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// looseEquals compares two resolved operands: numerically when both sides
// coerce to numbers, by string form otherwise.
func looseEquals(left, right any) bool {
	if left == nil && right == nil {
		return true
	}

	if ln, lok := toNumber(left); lok {
		if rn, rok := toNumber(right); rok {
			return ln == rn
		}
	}

	return toString(left) == toString(right)
}
