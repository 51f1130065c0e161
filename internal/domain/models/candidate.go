package models

import (
	"fmt"
	"strings"
)

// DiscoverySource names the strategy that produced a candidate.
type DiscoverySource string

const (
	SourceTopMarketCap   DiscoverySource = "top_market_cap"
	SourceVolumeScreener DiscoverySource = "volume_screener"
	SourceNewCoinSearch  DiscoverySource = "new_coin_search"
)

// DiscoverySources lists every known source in discovery order.
var DiscoverySources = []DiscoverySource{SourceTopMarketCap, SourceVolumeScreener, SourceNewCoinSearch}

// MarketRecord is a raw upstream market row. Nil numeric fields were absent upstream.
type MarketRecord struct {
	ID             string
	Symbol         string
	Name           string
	Price          *float64
	MarketCap      *float64
	Volume24h      *float64
	PriceChange24h *float64
	PriceChange7d  *float64
}

// Candidate is a symbol considered for scoring in one discovery cycle.
type Candidate struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Price           *float64        `json:"price"`
	MarketCap       *float64        `json:"market_cap"`
	Volume24h       *float64        `json:"volume_24h"`
	PriceChange24h  *float64        `json:"price_change_24h"`
	PriceChange7d   *float64        `json:"price_change_7d"`
	DiscoverySource DiscoverySource `json:"discovery_source"`
	IsNew           bool            `json:"is_new"`
}

// NewCandidate converts a raw record into a candidate tagged with its source.
func NewCandidate(r MarketRecord, src DiscoverySource) Candidate {
	return Candidate{
		Symbol:          strings.ToUpper(strings.TrimSpace(r.Symbol)),
		Name:            r.Name,
		Price:           r.Price,
		MarketCap:       r.MarketCap,
		Volume24h:       r.Volume24h,
		PriceChange24h:  r.PriceChange24h,
		PriceChange7d:   r.PriceChange7d,
		DiscoverySource: src,
	}
}

// MarketMetrics holds the validated numeric fields of a candidate.
type MarketMetrics struct {
	Price          float64
	MarketCap      float64
	Volume24h      float64
	PriceChange24h float64
	PriceChange7d  float64
}

// VolumeRatio is volume24h / marketCap, or 0 without a positive market cap.
func (m MarketMetrics) VolumeRatio() float64 {
	if m.MarketCap <= 0 {
		return 0
	}
	return m.Volume24h / m.MarketCap
}

// Metrics validates the candidate's required fields. Missing 24h/7d changes read as 0.
func (c Candidate) Metrics() (MarketMetrics, error) {
	if c.Symbol == "" {
		return MarketMetrics{}, fmt.Errorf("%w: symbol", ErrMalformedRecord)
	}
	switch {
	case c.Price == nil:
		return MarketMetrics{}, fmt.Errorf("%w: %s price", ErrMalformedRecord, c.Symbol)
	case c.MarketCap == nil:
		return MarketMetrics{}, fmt.Errorf("%w: %s market_cap", ErrMalformedRecord, c.Symbol)
	case c.Volume24h == nil:
		return MarketMetrics{}, fmt.Errorf("%w: %s volume_24h", ErrMalformedRecord, c.Symbol)
	}
	return MarketMetrics{
		Price:          *c.Price,
		MarketCap:      *c.MarketCap,
		Volume24h:      *c.Volume24h,
		PriceChange24h: valueOr(c.PriceChange24h, 0),
		PriceChange7d:  valueOr(c.PriceChange7d, 0),
	}, nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
