package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRadar/internal/domain/models"
)

func TestIsPotentialCandidateRequiresEveryCondition(t *testing.T) {
	f := DefaultEligibility()
	base := func() models.MarketRecord {
		return models.MarketRecord{
			Symbol:        "ok",
			MarketCap:     models.Float(100e6),
			Volume24h:     models.Float(20e6),
			PriceChange7d: models.Float(25),
		}
	}

	assert.True(t, f.IsPotentialCandidate(base()))

	cases := map[string]func(r *models.MarketRecord){
		"missing market cap": func(r *models.MarketRecord) { r.MarketCap = nil },
		"above cap ceiling":  func(r *models.MarketRecord) { r.MarketCap = models.Float(600e6) },
		"missing volume":     func(r *models.MarketRecord) { r.Volume24h = nil },
		"volume below floor": func(r *models.MarketRecord) { r.Volume24h = models.Float(5e5) },
		"weak 7d change":     func(r *models.MarketRecord) { r.PriceChange7d = models.Float(3) },
		"missing 7d change":  func(r *models.MarketRecord) { r.PriceChange7d = nil },
		"low turnover":       func(r *models.MarketRecord) { r.Volume24h = models.Float(2e6) },
	}
	for name, mutate := range cases {
		r := base()
		mutate(&r)
		assert.False(t, f.IsPotentialCandidate(r), name)
	}
}

func TestNewCoinHeuristic(t *testing.T) {
	h := DefaultNewCoinHeuristic()
	assert.True(t, h.IsNewCoin(models.Float(10e6), models.Float(4e6)))
	assert.False(t, h.IsNewCoin(models.Float(10e6), models.Float(1e6)))
	assert.False(t, h.IsNewCoin(models.Float(200e6), models.Float(100e6)))
	assert.False(t, h.IsNewCoin(nil, models.Float(1e6)))
}

type fakeMarkets struct {
	pages    map[string][][]models.MarketRecord
	trending []string
	byID     map[string]models.MarketRecord
	queries  []MarketsQuery
}

func (f *fakeMarkets) Markets(_ context.Context, q MarketsQuery) ([]models.MarketRecord, error) {
	f.queries = append(f.queries, q)
	if len(q.IDs) > 0 {
		var out []models.MarketRecord
		for _, id := range q.IDs {
			if r, ok := f.byID[id]; ok {
				out = append(out, r)
			}
		}
		return out, nil
	}
	pages := f.pages[q.Order]
	if q.Page-1 >= len(pages) {
		return nil, nil
	}
	return append([]models.MarketRecord(nil), pages[q.Page-1]...), nil
}

func (f *fakeMarkets) TrendingIDs(context.Context) ([]string, error) { return f.trending, nil }

func TestTopMarketCapExcludesStablecoins(t *testing.T) {
	src := &fakeMarkets{pages: map[string][][]models.MarketRecord{
		OrderMarketCapDesc: {{record("btc", "Bitcoin", 1e12, 3e10), record("USDT", "Tether", 1e11, 5e10), record("dai", "Dai", 5e9, 1e8)}},
	}}
	got, err := NewTopMarketCap(src, 100, NewExclusion(DefaultStablecoins...)).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "btc", got[0].Symbol)
	assert.Equal(t, 100, src.queries[0].PerPage)
}

func TestVolumeScreenerFiltersAndPages(t *testing.T) {
	eligible := record("hot", "Hot", 50e6, 10e6)
	eligible.PriceChange7d = models.Float(30)
	src := &fakeMarkets{pages: map[string][][]models.MarketRecord{
		OrderVolumeDesc: {
			{record("btc", "Bitcoin", 1e12, 3e10), eligible},
			{record("cold", "Cold", 50e6, 1e5)},
		},
	}}
	got, err := NewVolumeScreener(src, 2, 3, DefaultEligibility(), nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hot", got[0].Symbol)
	assert.Len(t, src.queries, 2)
}

func TestNewCoinSearchKeepsFlaggedTrending(t *testing.T) {
	src := &fakeMarkets{
		trending: []string{"fresh", "old"},
		byID: map[string]models.MarketRecord{
			"fresh": record("frsh", "fresh", 8e6, 6e6),
			"old":   record("old", "old", 8e9, 1e9),
		},
	}
	got, err := NewNewCoinSearch(src, DefaultNewCoinHeuristic()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "frsh", got[0].Symbol)
}
