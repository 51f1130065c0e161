package models

import "time"

// Factor is one non-zero contribution to a score.
type Factor struct {
	Name        string  `json:"name"`
	Points      float64 `json:"points"`
	Explanation string  `json:"explanation"`
}

// ScoreResult is the immutable outcome of scoring one candidate.
type ScoreResult struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Price           float64         `json:"price"`
	MarketCap       float64         `json:"market_cap"`
	PriceChange24h  float64         `json:"price_change_24h"`
	DiscoverySource DiscoverySource `json:"discovery_source"`
	IsNew           bool            `json:"is_new"`
	BaseScore       float64         `json:"base_score"`
	BonusApplied    float64         `json:"bonus_applied"`
	FinalScore      float64         `json:"final_score"`
	Factors         []Factor        `json:"factors"`
	Indicators      IndicatorSet    `json:"indicators"`
	WeightsVersion  int64           `json:"weights_version"`
	ScoredAt        time.Time       `json:"scored_at"`
}

// Explanations returns the factor explanations in breakdown order.
func (r ScoreResult) Explanations() []string {
	out := make([]string, 0, len(r.Factors))
	for _, f := range r.Factors {
		out = append(out, f.Explanation)
	}
	return out
}

// ClampScore bounds a score to [0,100].
func ClampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
