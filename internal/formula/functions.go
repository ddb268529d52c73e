package formula

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

type mathFunction struct {
	name     string
	minArity int
	maxArity int // -1 for variadic
	apply    func(args []float64) float64
}

func (f mathFunction) checkArity(n int) error {
	if n < f.minArity || (f.maxArity >= 0 && n > f.maxArity) {
		return fmt.Errorf("%w: wrong number of arguments for %q", ErrInvalidFormula, f.name)
	}
	return nil
}

// The allow-list mirrors the subset of Math.* the cost formulas may call.
// Everything else is rejected at parse time.
var mathFunctions = map[string]mathFunction{
	"ceil":  {name: "ceil", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Ceil(a[0]) }},
	"floor": {name: "floor", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Floor(a[0]) }},
	"round": {name: "round", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Floor(a[0] + 0.5) }},
	"abs":   {name: "abs", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Abs(a[0]) }},
	"min": {name: "min", minArity: 1, maxArity: -1, apply: func(a []float64) float64 {
		out := a[0]
		for _, v := range a[1:] {
			out = math.Min(out, v)
		}
		return out
	}},
	"max": {name: "max", minArity: 1, maxArity: -1, apply: func(a []float64) float64 {
		out := a[0]
		for _, v := range a[1:] {
			out = math.Max(out, v)
		}
		return out
	}},
	"pow":    {name: "pow", minArity: 2, maxArity: 2, apply: func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"sqrt":   {name: "sqrt", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"sin":    {name: "sin", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":    {name: "cos", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":    {name: "tan", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Tan(a[0]) }},
	"log":    {name: "log", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Log(a[0]) }},
	"exp":    {name: "exp", minArity: 1, maxArity: 1, apply: func(a []float64) float64 { return math.Exp(a[0]) }},
	"random": {name: "random", minArity: 0, maxArity: 0, apply: func([]float64) float64 { return rand.Float64() }},
}

// lookupFunction accepts both bare names and the Math.-qualified spelling
// admins tend to paste from JavaScript formulas.
func lookupFunction(name string) (mathFunction, bool) {
	trimmed := strings.TrimPrefix(name, "Math.")
	if strings.Contains(trimmed, ".") {
		return mathFunction{}, false
	}
	fn, ok := mathFunctions[trimmed]
	return fn, ok
}
