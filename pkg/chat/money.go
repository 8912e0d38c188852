package chat

import (
	"fmt"
	"math"
)

// Money is an amount in micro-euros. Integer arithmetic keeps repeated
// charges exact; conversions to and from euros happen only at the edges
// (configuration and display).
type Money int64

// Common amounts.
const (
	MicroEuro Money = 1
	Cent      Money = 10_000
	Euro      Money = 1_000_000
)

// Euros converts a euro amount to Money, rounding to the nearest micro-euro.
func Euros(v float64) Money {
	return Money(math.Round(v * float64(Euro)))
}

// Euros returns the amount as a float64 number of euros.
func (m Money) Euros() float64 {
	return float64(m) / float64(Euro)
}

// String formats the amount with four decimals, e.g. "€0.0125".
func (m Money) String() string {
	if m < 0 {
		return fmt.Sprintf("-€%.4f", (-m).Euros())
	}
	return fmt.Sprintf("€%.4f", m.Euros())
}
