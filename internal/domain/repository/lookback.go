package repository

// DefaultLookbackDays is the history window used for indicators and feedback stats.
const DefaultLookbackDays = 30

// MaxLookbackDays bounds any lookback request.
const MaxLookbackDays = 365

// NormalizeLookback maps non-positive values to the default and caps the window.
func NormalizeLookback(days int) int {
	if days <= 0 {
		return DefaultLookbackDays
	}
	if days > MaxLookbackDays {
		return MaxLookbackDays
	}
	return days
}
