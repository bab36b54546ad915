package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to places decimal places, half away from zero, using the
// shortest decimal representation of v so that 9.445 rounds to 9.45.
// NaN and infinities are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round2 rounds to two decimal places (premiums, prices, amounts).
func Round2(v float64) float64 { return Round(v, 2) }

// Round6 rounds to six decimal places (Greeks).
func Round6(v float64) float64 { return Round(v, 6) }

// FloorTo truncates v down to a multiple of step.
func FloorTo(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Floor(v/step) * step
}

// TruncateTo drops the fractional part of v/step, toward zero.
func TruncateTo(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Trunc(v/step) * step
}

// NearestTo rounds v to the nearest multiple of step.
func NearestTo(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.RoundToEven(v/step) * step
}
