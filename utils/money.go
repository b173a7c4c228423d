package utils

import "math"

// CentTolerance is the comparison tolerance for money values across the app.
const CentTolerance = 0.01

// roundEpsilon nudges exact .005 midpoints up before rounding, so 19.005
// becomes 19.01 instead of being truncated by its binary representation.
const roundEpsilon = 1e-9

// Round2 rounds x to 2 decimal places. Idempotent: Round2(Round2(x)) == Round2(x).
func Round2(x float64) float64 {
	if x < 0 {
		return -math.Round((-x+roundEpsilon)*100) / 100
	}
	return math.Round((x+roundEpsilon)*100) / 100
}

// ApproxZero reports whether a money value is zero within CentTolerance.
func ApproxZero(x float64) bool {
	return math.Abs(x) < CentTolerance
}

// ApproxEqual reports whether two money values are equal within CentTolerance.
func ApproxEqual(a, b float64) bool {
	return math.Abs(a-b) < CentTolerance
}
