package conditional

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// Evaluator evaluates conditional expressions against an execution's variable
// bindings. Evaluation never propagates an error outward: script exceptions and
// invalid regex patterns are logged and collapse to false.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{logger: logger.With("module", "conditional")}
}

// Evaluate resolves a conditional expression to a boolean.
func (e *Evaluator) Evaluate(expr models.ConditionalExpression, vars map[string]any) bool {
	switch expr.Type {
	case models.ExpressionTypeSimple:
		return e.evaluateSimple(expr, vars)
	case models.ExpressionTypeCompound:
		return e.evaluateCompound(expr, vars)
	case models.ExpressionTypeScript:
		return e.evaluateScript(expr.Script, vars)
	default:
		e.logger.Warn("unknown expression type, evaluating to false", "type", expr.Type)

		return false
	}
}

func (e *Evaluator) evaluateSimple(expr models.ConditionalExpression, vars map[string]any) bool {
	left := ResolveOperand(expr.Left, vars)

	// No operator: truthy-coerce the left operand.
	if expr.Operator == "" {
		return Truthy(left)
	}

	right := ResolveOperand(expr.Right, vars)

	switch expr.Operator {
	case models.OperatorEquals:
		return looseEquals(left, right)
	case models.OperatorNotEquals:
		return !looseEquals(left, right)
	case models.OperatorGreater:
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)

		return lok && rok && ln > rn
	case models.OperatorLess:
		ln, lok := toNumber(left)
		rn, rok := toNumber(right)

		return lok && rok && ln < rn
	case models.OperatorContains:
		return strings.Contains(toString(left), toString(right))
	case models.OperatorStartsWith:
		return strings.HasPrefix(toString(left), toString(right))
	case models.OperatorEndsWith:
		return strings.HasSuffix(toString(left), toString(right))
	case models.OperatorRegex:
		pattern, err := regexp.Compile(toString(right))
		if err != nil {
			e.logger.Warn("invalid regex pattern in condition, evaluating to false",
				"pattern", expr.Right, "error", err)

			return false
		}

		return pattern.MatchString(toString(left))
	default:
		e.logger.Warn("unknown operator, evaluating to false", "operator", expr.Operator)

		return false
	}
}

// evaluateCompound combines children. Children are evaluated independently so
// results do not depend on their order. "not" negates children[0] only; any
// additional children are ignored, which matches the documented contract.
func (e *Evaluator) evaluateCompound(expr models.ConditionalExpression, vars map[string]any) bool {
	switch expr.Logic {
	case models.LogicAnd:
		for _, child := range expr.Children {
			if !e.Evaluate(child, vars) {
				return false
			}
		}

		return true
	case models.LogicOr:
		for _, child := range expr.Children {
			if e.Evaluate(child, vars) {
				return true
			}
		}

		return false
	case models.LogicNot:
		if len(expr.Children) == 0 {
			return false
		}

		return !e.Evaluate(expr.Children[0], vars)
	default:
		e.logger.Warn("unknown compound logic, evaluating to false", "logic", expr.Logic)

		return false
	}
}

// EvaluateGuard evaluates a connection guard string. Guards use the compact
// "left operator right" form; a guard with no operator token truthy-coerces
// its resolved value. An empty guard always passes.
func (e *Evaluator) EvaluateGuard(guard string, vars map[string]any) bool {
	if strings.TrimSpace(guard) == "" {
		return true
	}

	return e.Evaluate(ParseGuard(guard), vars)
}

// guardOperators maps guard tokens to operators, longest tokens first so that
// "not-equals" is not shadowed by "equals".
var guardOperators = []models.Operator{
	models.OperatorNotEquals,
	models.OperatorStartsWith,
	models.OperatorEndsWith,
	models.OperatorContains,
	models.OperatorEquals,
	models.OperatorGreater,
	models.OperatorLess,
	models.OperatorRegex,
}

// ParseGuard parses a compact guard string into a simple expression.
func ParseGuard(guard string) models.ConditionalExpression {
	trimmed := strings.TrimSpace(guard)

	for _, op := range guardOperators {
		token := " " + string(op) + " "

		idx := strings.Index(trimmed, token)
		if idx < 0 {
			continue
		}

		return models.ConditionalExpression{
			Type:     models.ExpressionTypeSimple,
			Operator: op,
			Left:     strings.TrimSpace(trimmed[:idx]),
			Right:    strings.TrimSpace(trimmed[idx+len(token):]),
		}
	}

	return models.ConditionalExpression{
		Type: models.ExpressionTypeSimple,
		Left: trimmed,
	}
}
