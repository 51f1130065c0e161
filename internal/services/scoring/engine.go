package scoring

import (
	"fmt"
	"time"

	"CoinRadar/internal/domain/models"
	domsvc "CoinRadar/internal/domain/service"
)

// Factor names used in the score breakdown.
const (
	FactorVolumeRatio  = "volume_ratio"
	FactorMomentum     = "price_momentum"
	FactorMarketCap    = "market_cap"
	FactorTechnical    = "technical"
	FactorRisk         = "risk"
	FactorNewCoinBonus = "new_coin_bonus"
)

// Engine scores candidates with fixed rule tables and adaptive weights.
type Engine struct {
	newCoinPoints float64
	now           func() time.Time
}

type Option func(*Engine)

// WithNewCoinBonusPoints sets the flat new-coin bonus before weighting.
func WithNewCoinBonusPoints(p float64) Option {
	return func(e *Engine) {
		if p >= 0 {
			e.newCoinPoints = p
		}
	}
}

// WithClock overrides the time source stamped on results.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(opts ...Option) *Engine {
	e := &Engine{newCoinPoints: DefaultNewCoinBonusPoints, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ domsvc.Scorer = (*Engine)(nil)

// Score computes the weighted sub-scores, the risk adjustment and the new-coin bonus.
// The final score is clamped once, after everything is summed.
func (e *Engine) Score(c models.Candidate, ind models.IndicatorSet, w models.WeightVector) (models.ScoreResult, error) {
	m, err := c.Metrics()
	if err != nil {
		return models.ScoreResult{}, fmt.Errorf("score: %w", err)
	}

	res := models.ScoreResult{
		Symbol:          c.Symbol,
		Name:            c.Name,
		Price:           m.Price,
		MarketCap:       m.MarketCap,
		PriceChange24h:  m.PriceChange24h,
		DiscoverySource: c.DiscoverySource,
		IsNew:           c.IsNew,
		Indicators:      ind,
		WeightsVersion:  w.Version,
		ScoredAt:        e.now(),
	}

	var base float64
	add := func(name string, points float64, expl string) {
		if points == 0 {
			return
		}
		base += points
		res.Factors = append(res.Factors, models.Factor{Name: name, Points: points, Explanation: expl})
	}

	ratio := m.VolumeRatio()
	if t, ok := matchTier(volumeRatioTiers, ratio); ok {
		add(FactorVolumeRatio, t.points*w.VolumeRatio,
			fmt.Sprintf("volume/mcap %.2f (%s)", ratio, t.label))
	}

	if r, ok := matchMomentum(m.PriceChange24h, m.PriceChange7d); ok {
		add(FactorMomentum, r.points*w.PriceMomentum,
			fmt.Sprintf("24h %+.1f%%, 7d %+.1f%% (%s)", m.PriceChange24h, m.PriceChange7d, r.label))
	}

	if t, ok := matchTier(marketCapTiers, m.MarketCap); ok {
		add(FactorMarketCap, t.points*w.MarketCap,
			fmt.Sprintf("market cap $%.1fM (%s)", m.MarketCap/1e6, t.label))
	}

	tech, techExpl := technicalPoints(ind)
	add(FactorTechnical, tech*w.TechnicalIndicators, techExpl)

	if t, ok := matchTier(riskTiers, m.PriceChange24h); ok {
		add(FactorRisk, t.points, fmt.Sprintf("24h %+.1f%% (%s)", m.PriceChange24h, t.label))
	}

	var bonus float64
	if c.IsNew {
		bonus = e.newCoinPoints * w.NewCoinBonus
		if bonus != 0 {
			res.Factors = append(res.Factors, models.Factor{
				Name:        FactorNewCoinBonus,
				Points:      bonus,
				Explanation: fmt.Sprintf("new coin bonus +%.1f", bonus),
			})
		}
	}

	res.BaseScore = base
	res.BonusApplied = bonus
	res.FinalScore = models.ClampScore(base + bonus)
	return res, nil
}

func technicalPoints(ind models.IndicatorSet) (float64, string) {
	var pts float64
	var expl string
	if t, ok := matchTier(rsiTiers, ind.RSI); ok {
		pts += t.points
		expl = fmt.Sprintf("RSI %.1f (%s)", ind.RSI, t.label)
	}
	if ind.MACD > ind.MACDSignal {
		pts += macdBullishPoints
		if expl != "" {
			expl += ", "
		}
		expl += "MACD above signal (bullish)"
	}
	return pts, expl
}
