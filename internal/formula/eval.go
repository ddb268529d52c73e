// Package formula evaluates admin-configured cost expressions over request
// parameters. Expressions are interpreted against a restricted grammar; no
// dynamic code execution is involved, so an expression can reach nothing but
// its resolved numeric variables and the math allow-list.
package formula

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const resultPrecision = 7

// Evaluate computes the numeric cost of expr. Variables resolve against data
// first, then defaults, traversing dotted paths through nested maps. The
// result is rounded to seven decimal places so quota arithmetic is stable
// across calls.
func Evaluate(expr string, data, defaults map[string]any) (float64, error) {
	root, err := parse(expr)
	if err != nil {
		return 0, err
	}

	result, err := root.eval(&resolver{data: data, defaults: defaults})
	if err != nil {
		return 0, err
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrCalculationError)
	}

	return decimal.NewFromFloat(result).Round(resultPrecision).InexactFloat64(), nil
}

// Validate checks that expr parses under the restricted grammar without
// evaluating it. Used when admins save a metric definition.
func Validate(expr string) error {
	_, err := parse(expr)
	return err
}

type resolver struct {
	data     map[string]any
	defaults map[string]any
}

// resolve walks the dotted path through data, falling back to defaults when
// any level is absent, nil, or an empty string.
func (r *resolver) resolve(path string) (float64, error) {
	if value, ok := lookupPath(r.data, path); ok {
		return coerceNumber(path, value)
	}
	if value, ok := lookupPath(r.defaults, path); ok {
		return coerceNumber(path, value)
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingVariable, path)
}

func lookupPath(root map[string]any, path string) (any, bool) {
	if root == nil {
		return nil, false
	}

	var current any = root
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, present := obj[segment]
		if !present || value == nil {
			return nil, false
		}
		if s, isString := value.(string); isString && s == "" {
			return nil, false
		}
		current = value
	}
	return current, true
}

func coerceNumber(path string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidVariableType, path)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidVariableType, path)
	}
}

func (n *numberNode) eval(*resolver) (float64, error) {
	return n.value, nil
}

func (n *variableNode) eval(vars *resolver) (float64, error) {
	return vars.resolve(n.path)
}

func (n *unaryNode) eval(vars *resolver) (float64, error) {
	value, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	return -value, nil
}

func (n *binaryNode) eval(vars *resolver) (float64, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	right, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}

	switch n.op {
	case tokenPlus:
		return left + right, nil
	case tokenMinus:
		return left - right, nil
	case tokenStar:
		return left * right, nil
	case tokenSlash:
		return left / right, nil
	default:
		return 0, fmt.Errorf("%w: unknown operator", ErrInvalidFormula)
	}
}

func (n *callNode) eval(vars *resolver) (float64, error) {
	fn := mathFunctions[n.name]
	args := make([]float64, len(n.args))
	for i, arg := range n.args {
		value, err := arg.eval(vars)
		if err != nil {
			return 0, err
		}
		args[i] = value
	}
	return fn.apply(args), nil
}
