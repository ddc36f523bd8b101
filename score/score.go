// Package score keeps the bounded progress scores of a driving session.
package score

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	Min = 0.0
	Max = 100.0
)

var (
	decMin = decimal.NewFromFloat(Min)
	decMax = decimal.NewFromFloat(Max)
)

// Accumulator is a single score bounded to [Min, Max].
// The value is a decimal so that long runs of 0.1 increments land on round numbers.
type Accumulator struct {
	value decimal.Decimal
}

func New(initial float64) *Accumulator {
	a := &Accumulator{value: decMin}
	a.Apply(initial)
	return a
}

// Apply adds delta and clamps the result. It returns the new value.
// NaN is ignored; infinities pin the score to a bound.
func (a *Accumulator) Apply(delta float64) float64 {
	switch {
	case math.IsNaN(delta):
		return a.Value()
	case math.IsInf(delta, 1):
		a.value = decMax
		return Max
	case math.IsInf(delta, -1):
		a.value = decMin
		return Min
	}
	a.value = clamp(a.value.Add(decimal.NewFromFloat(delta)))
	return a.Value()
}

func (a *Accumulator) Value() float64 {
	v, _ := a.value.Float64()
	return v
}

// AtLeast reports whether the score is >= v.
func (a *Accumulator) AtLeast(v float64) bool {
	return a.value.GreaterThanOrEqual(decimal.NewFromFloat(v))
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decMin) {
		return decMin
	}
	if d.GreaterThan(decMax) {
		return decMax
	}
	return d
}
