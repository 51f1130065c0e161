package util

import (
	"math"
	"strconv"
)

// FormatPrice renders a USD price with precision scaled to its magnitude:
// below 0.001 eight decimals, below 1 six, otherwise two.
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "$?"
	}
	abs := math.Abs(p)
	prec := 2
	switch {
	case abs < 0.001:
		prec = 8
	case abs < 1:
		prec = 6
	}
	return "$" + strconv.FormatFloat(p, 'f', prec, 64)
}

// FormatPercent renders a signed percentage with two decimals.
func FormatPercent(p float64) string {
	s := strconv.FormatFloat(p, 'f', 2, 64)
	if p > 0 {
		s = "+" + s
	}
	return s + "%"
}
