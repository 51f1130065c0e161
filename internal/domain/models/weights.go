package models

import "time"

// WeightVector holds the multiplicative factor weights used by scoring.
// Values are never mutated in place; a retrain produces a new vector.
type WeightVector struct {
	VolumeRatio         float64   `json:"volume_ratio"`
	PriceMomentum       float64   `json:"price_momentum"`
	MarketCap           float64   `json:"market_cap"`
	TechnicalIndicators float64   `json:"technical_indicators"`
	NewCoinBonus        float64   `json:"new_coin_bonus"`
	Version             int64     `json:"version"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// WeightBounds is the [Min,Max] band every component is clamped to.
type WeightBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp bounds v to the band.
func (b WeightBounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// UniformWeights returns a vector with every component set to v.
func UniformWeights(v float64) WeightVector {
	return WeightVector{
		VolumeRatio:         v,
		PriceMomentum:       v,
		MarketCap:           v,
		TechnicalIndicators: v,
		NewCoinBonus:        v,
	}
}

// Clamped returns a copy with every component inside b.
func (w WeightVector) Clamped(b WeightBounds) WeightVector {
	w.VolumeRatio = b.Clamp(w.VolumeRatio)
	w.PriceMomentum = b.Clamp(w.PriceMomentum)
	w.MarketCap = b.Clamp(w.MarketCap)
	w.TechnicalIndicators = b.Clamp(w.TechnicalIndicators)
	w.NewCoinBonus = b.Clamp(w.NewCoinBonus)
	return w
}

// SameValues compares the components, ignoring version metadata.
func (w WeightVector) SameValues(o WeightVector) bool {
	return w.VolumeRatio == o.VolumeRatio &&
		w.PriceMomentum == o.PriceMomentum &&
		w.MarketCap == o.MarketCap &&
		w.TechnicalIndicators == o.TechnicalIndicators &&
		w.NewCoinBonus == o.NewCoinBonus
}
