package scoring

import "math"

// Rule tables. Each table is evaluated top to bottom and the first matching row wins.

// band is the open interval (lo, hi).
type band struct{ lo, hi float64 }

func (b band) contains(v float64) bool { return v > b.lo && v < b.hi }

var anyValue = band{math.Inf(-1), math.Inf(1)}

func above(v float64) band { return band{v, math.Inf(1)} }
func below(v float64) band { return band{math.Inf(-1), v} }

type tier struct {
	when   band
	points float64
	label  string
}

func matchTier(tiers []tier, v float64) (tier, bool) {
	for _, t := range tiers {
		if t.when.contains(v) {
			return t, true
		}
	}
	return tier{}, false
}

// volumeRatioTiers score volume24h / marketCap.
var volumeRatioTiers = []tier{
	{above(0.30), 20, "extreme"},
	{above(0.15), 15, "high"},
	{above(0.05), 10, "good"},
}

type momentumRule struct {
	change24h band
	change7d  band
	points    float64
	label     string
}

var momentumRules = []momentumRule{
	{band{5, 50}, above(20), 25, "strong momentum"},
	{band{5, 50}, anyValue, 20, "positive momentum"},
	{below(-15), anyValue, 8, "rebound potential"},
}

func matchMomentum(change24h, change7d float64) (momentumRule, bool) {
	for _, r := range momentumRules {
		if r.change24h.contains(change24h) && r.change7d.contains(change7d) {
			return r, true
		}
	}
	return momentumRule{}, false
}

// marketCapTiers award small caps the most; nothing at or above the 1B ceiling.
var marketCapTiers = []tier{
	{band{0, 50e6}, 15, "small cap"},
	{band{0, 250e6}, 10, "mid cap"},
	{band{0, 1e9}, 5, "large cap"},
}

// rsiTiers is the only table with a negative row.
var rsiTiers = []tier{
	{below(35), 15, "oversold"},
	{above(65), -10, "overbought"},
}

const macdBullishPoints = 15.0

// riskTiers subtract from the base score on extreme 24h moves.
var riskTiers = []tier{
	{above(80), -20, "extreme 24h move"},
}

// DefaultNewCoinBonusPoints is the flat bonus before the new-coin weight multiplier.
const DefaultNewCoinBonusPoints = 10.0
