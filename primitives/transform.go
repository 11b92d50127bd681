package primitives

import (
	"math"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// TRANSFORM PRIMITIVES
// ============================================================================
// Datetime extractors (year, month, day, weekday), unary numeric
// transforms (absolute, natural_log), and binary numeric arithmetic
// (add, subtract, multiply, divide). All outputs are numeric; cells that
// cannot be computed become NaN.
// ============================================================================

func init() {
	register(dateTransform{name: "year", desc: "Calendar year of a datetime column", f: func(t yearMonthDay) float64 { return float64(t.year) }})
	register(dateTransform{name: "month", desc: "Month (1-12) of a datetime column", f: func(t yearMonthDay) float64 { return float64(t.month) }})
	register(dateTransform{name: "day", desc: "Day of month of a datetime column", f: func(t yearMonthDay) float64 { return float64(t.day) }})
	register(dateTransform{name: "weekday", desc: "Day of week (0=Sunday) of a datetime column", f: func(t yearMonthDay) float64 { return float64(t.weekday) }})

	register(unaryTransform{name: "absolute", desc: "Absolute value of a numeric column", f: math.Abs})
	register(unaryTransform{name: "natural_log", desc: "Natural logarithm of a numeric column", f: naturalLog})

	register(binaryTransform{name: "add", desc: "Sum of two numeric columns", commutative: true, f: func(a, b float64) float64 { return a + b }})
	register(binaryTransform{name: "subtract", desc: "Difference of two numeric columns", f: func(a, b float64) float64 { return a - b }})
	register(binaryTransform{name: "multiply", desc: "Product of two numeric columns", commutative: true, f: func(a, b float64) float64 { return a * b }})
	register(binaryTransform{name: "divide", desc: "Ratio of two numeric columns", f: safeDivide})
}

func naturalLog(v float64) float64 {
	if v <= 0 {
		return math.NaN()
	}
	return math.Log(v)
}

func safeDivide(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	return a / b
}

// ============================================================================
// DATETIME EXTRACTORS
// ============================================================================

type yearMonthDay struct {
	year, month, day, weekday int
}

type dateTransform struct {
	name string
	desc string
	f    func(yearMonthDay) float64
}

func (t dateTransform) Name() string              { return t.name }
func (t dateTransform) Description() string       { return t.desc }
func (t dateTransform) Kind() Kind                { return Transform }
func (t dateTransform) Arity() int                { return 1 }
func (t dateTransform) InputType() schema.VarType { return schema.Datetime }
func (t dateTransform) Commutative() bool         { return false }

func (t dateTransform) Apply(in ...entityset.Series) []float64 {
	s := in[0]
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = math.NaN()
		if !s.Valid[i] {
			continue
		}
		ts := s.Times[i]
		out[i] = t.f(yearMonthDay{
			year:    ts.Year(),
			month:   int(ts.Month()),
			day:     ts.Day(),
			weekday: int(ts.Weekday()),
		})
	}
	return out
}

// ============================================================================
// UNARY NUMERIC TRANSFORMS
// ============================================================================

type unaryTransform struct {
	name string
	desc string
	f    func(float64) float64
}

func (t unaryTransform) Name() string              { return t.name }
func (t unaryTransform) Description() string       { return t.desc }
func (t unaryTransform) Kind() Kind                { return Transform }
func (t unaryTransform) Arity() int                { return 1 }
func (t unaryTransform) InputType() schema.VarType { return schema.Numeric }
func (t unaryTransform) Commutative() bool         { return false }

func (t unaryTransform) Apply(in ...entityset.Series) []float64 {
	s := in[0]
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = math.NaN()
		if s.Valid[i] && !math.IsNaN(s.Nums[i]) {
			out[i] = t.f(s.Nums[i])
		}
	}
	return out
}

// ============================================================================
// BINARY NUMERIC TRANSFORMS
// ============================================================================

type binaryTransform struct {
	name        string
	desc        string
	commutative bool
	f           func(a, b float64) float64
}

func (t binaryTransform) Name() string              { return t.name }
func (t binaryTransform) Description() string       { return t.desc }
func (t binaryTransform) Kind() Kind                { return Transform }
func (t binaryTransform) Arity() int                { return 2 }
func (t binaryTransform) InputType() schema.VarType { return schema.Numeric }
func (t binaryTransform) Commutative() bool         { return t.commutative }

func (t binaryTransform) Apply(in ...entityset.Series) []float64 {
	a, b := in[0], in[1]
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = math.NaN()
		if !a.Valid[i] || !b.Valid[i] {
			continue
		}
		if math.IsNaN(a.Nums[i]) || math.IsNaN(b.Nums[i]) {
			continue
		}
		out[i] = t.f(a.Nums[i], b.Nums[i])
	}
	return out
}
