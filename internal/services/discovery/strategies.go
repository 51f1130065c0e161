package discovery

import (
	"context"
	"fmt"
	"strings"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
)

// Order values understood by a MarketSource.
const (
	OrderMarketCapDesc = "market_cap_desc"
	OrderVolumeDesc    = "volume_desc"
)

// MarketsQuery selects a page of market records.
type MarketsQuery struct {
	Order   string
	PerPage int
	Page    int
	IDs     []string
}

// MarketSource is the upstream the strategies read from.
type MarketSource interface {
	Markets(ctx context.Context, q MarketsQuery) ([]models.MarketRecord, error)
	TrendingIDs(ctx context.Context) ([]string, error)
}

// TopMarketCap returns the largest assets, minus stablecoins.
type TopMarketCap struct {
	src     MarketSource
	limit   int
	exclude Exclusion
}

func NewTopMarketCap(src MarketSource, limit int, exclude Exclusion) *TopMarketCap {
	if limit <= 0 {
		limit = 100
	}
	return &TopMarketCap{src: src, limit: limit, exclude: exclude}
}

func (s *TopMarketCap) Source() models.DiscoverySource { return models.SourceTopMarketCap }

func (s *TopMarketCap) Fetch(ctx context.Context) ([]models.MarketRecord, error) {
	recs, err := s.src.Markets(ctx, MarketsQuery{Order: OrderMarketCapDesc, PerPage: s.limit, Page: 1})
	if err != nil {
		return nil, fmt.Errorf("top market cap: %w", err)
	}
	out := recs[:0]
	for _, r := range recs {
		if s.exclude.Has(r.Symbol) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// VolumeScreener pages through volume-ranked markets and keeps eligible records.
type VolumeScreener struct {
	src     MarketSource
	perPage int
	pages   int
	filter  EligibilityFilter
	exclude Exclusion
}

func NewVolumeScreener(src MarketSource, perPage, pages int, filter EligibilityFilter, exclude Exclusion) *VolumeScreener {
	if perPage <= 0 {
		perPage = 250
	}
	if pages <= 0 {
		pages = 1
	}
	return &VolumeScreener{src: src, perPage: perPage, pages: pages, filter: filter, exclude: exclude}
}

func (s *VolumeScreener) Source() models.DiscoverySource { return models.SourceVolumeScreener }

func (s *VolumeScreener) Fetch(ctx context.Context) ([]models.MarketRecord, error) {
	var out []models.MarketRecord
	for page := 1; page <= s.pages; page++ {
		recs, err := s.src.Markets(ctx, MarketsQuery{Order: OrderVolumeDesc, PerPage: s.perPage, Page: page})
		if err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, fmt.Errorf("volume screener page %d: %w", page, err)
		}
		for _, r := range recs {
			if s.exclude.Has(r.Symbol) || !s.filter.IsPotentialCandidate(r) {
				continue
			}
			out = append(out, r)
		}
		if len(recs) < s.perPage {
			break
		}
	}
	return out, nil
}

// NewCoinSearch resolves trending coins and keeps those the new-coin heuristic flags.
type NewCoinSearch struct {
	src       MarketSource
	heuristic NewCoinHeuristic
}

func NewNewCoinSearch(src MarketSource, h NewCoinHeuristic) *NewCoinSearch {
	return &NewCoinSearch{src: src, heuristic: h}
}

func (s *NewCoinSearch) Source() models.DiscoverySource { return models.SourceNewCoinSearch }

func (s *NewCoinSearch) Fetch(ctx context.Context) ([]models.MarketRecord, error) {
	ids, err := s.src.TrendingIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	recs, err := s.src.Markets(ctx, MarketsQuery{IDs: ids, PerPage: len(ids), Page: 1})
	if err != nil {
		return nil, fmt.Errorf("trending markets: %w", err)
	}
	out := recs[:0]
	for _, r := range recs {
		if s.heuristic.IsNewCoin(r.MarketCap, r.Volume24h) {
			out = append(out, r)
		}
	}
	return out, nil
}

var (
	_ domrepo.DiscoveryStrategy = (*TopMarketCap)(nil)
	_ domrepo.DiscoveryStrategy = (*VolumeScreener)(nil)
	_ domrepo.DiscoveryStrategy = (*NewCoinSearch)(nil)
)

func normalize(symbol string) string { return strings.ToLower(strings.TrimSpace(symbol)) }
