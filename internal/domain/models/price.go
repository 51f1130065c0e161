package models

import "time"

// PricePoint is one market snapshot of a symbol. (Symbol, CapturedAt) is unique per store.
type PricePoint struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	MarketCap  float64   `json:"market_cap"`
	CapturedAt time.Time `json:"captured_at"`
}

// Closes returns the price series of points in their given order.
func Closes(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// Volumes returns the volume series of points in their given order.
func Volumes(points []PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Volume
	}
	return out
}
