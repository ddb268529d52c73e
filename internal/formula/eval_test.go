package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		data     map[string]any
		defaults map[string]any
		expected float64
	}{
		{name: "literal", expr: "42", expected: 42},
		{name: "precedence", expr: "2 + 3 * 4", expected: 14},
		{name: "parentheses", expr: "(2 + 3) * 4", expected: 20},
		{name: "unary minus", expr: "-3 + 10", expected: 7},
		{name: "seven decimal places", expr: "10 / 3", expected: 3.3333333},
		{name: "variable from data", expr: "count * 2", data: map[string]any{"count": 5}, expected: 10},
		{
			name:     "default fallback",
			expr:     "a + b",
			data:     map[string]any{"a": 10},
			defaults: map[string]any{"b": 20},
			expected: 30,
		},
		{
			name:     "data overrides default",
			expr:     "a + b",
			data:     map[string]any{"a": 10, "b": 50},
			defaults: map[string]any{"b": 20},
			expected: 60,
		},
		{
			name:     "nested path",
			expr:     "user.profile.age + 10",
			data:     map[string]any{"user": map[string]any{"profile": map[string]any{"age": 25}}},
			expected: 35,
		},
		{
			name:     "empty string falls back to default",
			expr:     "time",
			data:     map[string]any{"time": ""},
			defaults: map[string]any{"time": 15},
			expected: 15,
		},
		{
			name:     "math prefix call",
			expr:     "count * (Math.ceil(time / 5))",
			data:     map[string]any{"count": 3, "time": 12},
			expected: 9,
		},
		{name: "bare call", expr: "ceil(1.2) + floor(1.8)", expected: 3},
		{name: "variadic min max", expr: "min(3, 1, 2) + max(3, 1, 2)", expected: 4},
		{name: "pow", expr: "pow(2, 10)", expected: 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(tt.expr, tt.data, tt.defaults)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	data := map[string]any{"count": 7, "time": 13}
	first, err := Evaluate("count * (Math.ceil(time/5)) + sqrt(count)", data, nil)
	require.NoError(t, err)
	second, err := Evaluate("count * (Math.ceil(time/5)) + sqrt(count)", data, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluate_SandboxRejection(t *testing.T) {
	exprs := []string{
		"1 + 2; alert('x')",
		"console.log(1)",
		"1+2 && 3",
		"count = 5",
		"fetch(1)",
		"Math.imul(2, 3)",
		"a['b']",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr, map[string]any{"count": 1, "a": 1}, nil)
			assert.ErrorIs(t, err, ErrInvalidFormula)
		})
	}
}

func TestEvaluate_EmptyExpression(t *testing.T) {
	_, err := Evaluate("", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidFormula)

	_, err = Evaluate("   ", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidFormula)
}

func TestEvaluate_MissingVariable(t *testing.T) {
	_, err := Evaluate("a + b", map[string]any{"a": 10}, nil)
	require.ErrorIs(t, err, ErrMissingVariable)
	assert.Contains(t, err.Error(), "b")
}

func TestEvaluate_InvalidVariableType(t *testing.T) {
	_, err := Evaluate("a + b", map[string]any{"a": 10, "b": "x"}, nil)
	require.ErrorIs(t, err, ErrInvalidVariableType)
	assert.Contains(t, err.Error(), "b")
}

func TestEvaluate_NonFiniteResult(t *testing.T) {
	_, err := Evaluate("1 / 0", nil, nil)
	assert.ErrorIs(t, err, ErrCalculationError)

	_, err = Evaluate("Math.sqrt(-1)", nil, nil)
	assert.ErrorIs(t, err, ErrCalculationError)

	_, err = Evaluate("log(0)", nil, nil)
	assert.ErrorIs(t, err, ErrCalculationError)
}

func TestEvaluate_WrongArity(t *testing.T) {
	_, err := Evaluate("pow(2)", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidFormula)

	_, err = Evaluate("ceil(1, 2)", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidFormula)
}

func TestEvaluate_Random(t *testing.T) {
	result, err := Evaluate("random() * 10", nil, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result, 0.0)
	assert.Less(t, result, 10.0)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("count * (Math.ceil(time/5))"))
	assert.ErrorIs(t, Validate(""), ErrInvalidFormula)
	assert.ErrorIs(t, Validate("system('rm')"), ErrInvalidFormula)
}
