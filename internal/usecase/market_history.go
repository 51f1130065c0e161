package usecase

import (
	"context"
	"fmt"
	"strings"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	"CoinRadar/internal/services/indicators"
)

const maxHistoryPoints = 5000

// MarketHistory serves a symbol's recorded price history with its current indicators.
type MarketHistory struct {
	prices domrepo.PriceStore
}

func NewMarketHistory(prices domrepo.PriceStore) *MarketHistory {
	return &MarketHistory{prices: prices}
}

type HistoryParams struct {
	Symbol string
	Days   int
	Limit  int
}

type HistoryResult struct {
	Symbol       string              `json:"symbol"`
	LookbackDays int                 `json:"lookback_days"`
	Count        int                 `json:"count"`
	Indicators   models.IndicatorSet `json:"indicators"`
	Points       []models.PricePoint `json:"points"`
}

// GetHistory returns the newest Limit points of the window, ascending. Indicators are
// computed over the whole window.
func (uc *MarketHistory) GetHistory(ctx context.Context, p HistoryParams) (*HistoryResult, error) {
	sym := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if sym == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Limit <= 0 || p.Limit > maxHistoryPoints {
		p.Limit = maxHistoryPoints
	}
	days := domrepo.NormalizeLookback(p.Days)

	points, err := uc.prices.GetHistory(ctx, sym, days)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	ind := indicators.Compute(points)
	if len(points) > p.Limit {
		points = points[len(points)-p.Limit:]
	}
	if points == nil {
		points = []models.PricePoint{}
	}
	return &HistoryResult{
		Symbol:       sym,
		LookbackDays: days,
		Count:        len(points),
		Indicators:   ind,
		Points:       points,
	}, nil
}
