package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
)

type fakeStrategy struct {
	src   models.DiscoverySource
	recs  []models.MarketRecord
	err   error
	delay time.Duration
}

func (f *fakeStrategy) Source() models.DiscoverySource { return f.src }

func (f *fakeStrategy) Fetch(ctx context.Context) ([]models.MarketRecord, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.recs, f.err
}

func record(symbol, name string, mcap, vol float64) models.MarketRecord {
	return models.MarketRecord{
		ID:            name,
		Symbol:        symbol,
		Name:          name,
		Price:         models.Float(1),
		MarketCap:     models.Float(mcap),
		Volume24h:     models.Float(vol),
		PriceChange7d: models.Float(12),
	}
}

func TestDiscoverFirstSourceWinsOnDuplicateSymbol(t *testing.T) {
	// The earlier source is slower; precedence must follow registration order, not arrival.
	first := &fakeStrategy{src: models.SourceTopMarketCap, delay: 30 * time.Millisecond,
		recs: []models.MarketRecord{record("abc", "from-top", 900e6, 10e6)}}
	second := &fakeStrategy{src: models.SourceVolumeScreener,
		recs: []models.MarketRecord{record("ABC", "from-screener", 20e6, 9e6), record("xyz", "xyz", 20e6, 2e6)}}

	got, err := NewAggregator([]domrepo.DiscoveryStrategy{first, second}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ABC", got[0].Symbol)
	assert.Equal(t, "from-top", got[0].Name)
	assert.Equal(t, models.SourceTopMarketCap, got[0].DiscoverySource)
	assert.Equal(t, "XYZ", got[1].Symbol)
	assert.Equal(t, models.SourceVolumeScreener, got[1].DiscoverySource)
}

func TestDiscoverSkipsFailedStrategy(t *testing.T) {
	bad := &fakeStrategy{src: models.SourceTopMarketCap, err: errors.New("boom")}
	good := &fakeStrategy{src: models.SourceNewCoinSearch, recs: []models.MarketRecord{record("new", "new", 10e6, 5e6)}}

	got, err := NewAggregator([]domrepo.DiscoveryStrategy{bad, good}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsNew)
}

func TestDiscoverAllStrategiesFailed(t *testing.T) {
	a := NewAggregator([]domrepo.DiscoveryStrategy{
		&fakeStrategy{src: models.SourceTopMarketCap, err: errors.New("a")},
		&fakeStrategy{src: models.SourceVolumeScreener, err: errors.New("b")},
	})

	_, err := a.Discover(context.Background())
	require.ErrorIs(t, err, models.ErrDiscoveryFailed)
}

func TestDiscoverClassifiesNewCoins(t *testing.T) {
	s := &fakeStrategy{src: models.SourceTopMarketCap, recs: []models.MarketRecord{
		record("micro", "busy micro cap", 20e6, 10e6),
		record("big", "big", 5e9, 4e9),
		record("quiet", "quiet micro cap", 20e6, 1e6),
	}}
	got, err := NewAggregator([]domrepo.DiscoveryStrategy{s}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].IsNew)
	assert.False(t, got[1].IsNew)
	assert.False(t, got[2].IsNew)
}
