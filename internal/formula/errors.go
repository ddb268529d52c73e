package formula

import "errors"

var (
	// ErrInvalidFormula marks an empty expression or one containing tokens
	// outside the restricted grammar.
	ErrInvalidFormula = errors.New("invalid_formula")
	// ErrMissingVariable marks a variable path resolvable in neither the call
	// parameters nor the defaults.
	ErrMissingVariable = errors.New("missing_variable")
	// ErrInvalidVariableType marks a variable that resolved to a non-numeric
	// value.
	ErrInvalidVariableType = errors.New("invalid_variable_type")
	// ErrCalculationError marks a non-finite result (division by zero, sqrt of
	// a negative, log of zero).
	ErrCalculationError = errors.New("calculation_error")
)
