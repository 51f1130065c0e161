package models

import "time"

// NeutralRSI is reported when history does not cover the RSI window.
const NeutralRSI = 50.0

// IndicatorSet holds the technical indicators derived from one symbol's history.
type IndicatorSet struct {
	SMA20         float64 `json:"sma20"`
	EMA12         float64 `json:"ema12"`
	EMA26         float64 `json:"ema26"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	VolumeSMA20   float64 `json:"volume_sma20"`
}

// NeutralIndicators returns the set reported for a symbol without history.
func NeutralIndicators() IndicatorSet {
	return IndicatorSet{RSI: NeutralRSI}
}

// IndicatorSnapshot is an audit record of the indicators used for one score.
type IndicatorSnapshot struct {
	Symbol     string       `json:"symbol"`
	Indicators IndicatorSet `json:"indicators"`
	Points     int          `json:"points"`
	ComputedAt time.Time    `json:"computed_at"`
}
