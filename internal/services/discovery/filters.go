package discovery

import "CoinRadar/internal/domain/models"

// EligibilityFilter is the screener's fixed admission rule. All four conditions must hold.
type EligibilityFilter struct {
	MaxMarketCap   float64
	MinVolume      float64
	MinChange7d    float64
	MinVolumeRatio float64
}

func DefaultEligibility() EligibilityFilter {
	return EligibilityFilter{
		MaxMarketCap:   500e6,
		MinVolume:      1e6,
		MinChange7d:    10,
		MinVolumeRatio: 0.05,
	}
}

// IsPotentialCandidate reports whether r passes every screener condition.
// A record missing any of the inspected fields is rejected.
func (f EligibilityFilter) IsPotentialCandidate(r models.MarketRecord) bool {
	if r.MarketCap == nil || r.Volume24h == nil || r.PriceChange7d == nil {
		return false
	}
	mcap, vol := *r.MarketCap, *r.Volume24h
	if mcap <= 0 || mcap >= f.MaxMarketCap {
		return false
	}
	if vol <= f.MinVolume {
		return false
	}
	if *r.PriceChange7d <= f.MinChange7d {
		return false
	}
	return vol/mcap > f.MinVolumeRatio
}

// NewCoinHeuristic flags likely new listings from turnover and size alone.
// It has no listing date and will also flag busy long-lived micro caps.
type NewCoinHeuristic struct {
	MinVolumeRatio float64
	MaxMarketCap   float64
}

func DefaultNewCoinHeuristic() NewCoinHeuristic {
	return NewCoinHeuristic{MinVolumeRatio: 0.3, MaxMarketCap: 100e6}
}

func (h NewCoinHeuristic) IsNewCoin(mcap, vol *float64) bool {
	if mcap == nil || vol == nil || *mcap <= 0 {
		return false
	}
	return *vol / *mcap >= h.MinVolumeRatio && *mcap < h.MaxMarketCap
}

// Exclusion is a set of lower-cased symbols never admitted as candidates.
type Exclusion map[string]struct{}

// NewExclusion builds an exclusion set; symbols are matched case-insensitively.
func NewExclusion(symbols ...string) Exclusion {
	ex := make(Exclusion, len(symbols))
	for _, s := range symbols {
		ex[normalize(s)] = struct{}{}
	}
	return ex
}

func (e Exclusion) Has(symbol string) bool {
	_, ok := e[normalize(symbol)]
	return ok
}

// DefaultStablecoins are excluded from the top-by-market-cap strategy.
var DefaultStablecoins = []string{"usdt", "usdc", "busd", "dai"}
