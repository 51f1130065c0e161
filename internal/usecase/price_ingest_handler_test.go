package usecase

import (
	"context"
	"testing"
	"time"

	"CoinRadar/internal/repository"
	pkgkafka "CoinRadar/pkg/kafka"
	"CoinRadar/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceIngestStoresPoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	store := repository.NewMemoryPriceStore(repository.WithPriceClock(func() time.Time { return now }))
	h := NewPriceIngestHandler("coinradar.prices", store, metrics.Nop{})

	ms := now.Add(-time.Minute).UnixMilli()
	msg := []byte(`{"symbol":"btc","t":` + itoa(ms) + `,"c":64000.5,"v":1200,"mcap":1.2e12}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	pts, err := store.GetHistory(context.Background(), "BTC", 1)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, "BTC", pts[0].Symbol)
	assert.Equal(t, now.Add(-time.Minute), pts[0].CapturedAt)
	assert.InDelta(t, 1.2e12, pts[0].MarketCap, 1)
}

func TestPriceIngestSecondsTimestamp(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	store := repository.NewMemoryPriceStore(repository.WithPriceClock(func() time.Time { return now }))
	h := NewPriceIngestHandler("t", store, metrics.Nop{})

	msg := []byte(`{"symbol":"ETH","t":` + itoa(now.Unix()) + `,"c":3000}`)
	require.NoError(t, h.Handle(context.Background(), msg))
	pts, _ := store.GetHistory(context.Background(), "ETH", 1)
	require.Len(t, pts, 1)
	assert.Equal(t, now, pts[0].CapturedAt)
}

func TestPriceIngestRejectsBadMessages(t *testing.T) {
	h := NewPriceIngestHandler("t", repository.NewMemoryPriceStore(), metrics.Nop{})
	for _, raw := range []string{`{`, `{"symbol":"","t":1,"c":1}`, `{"symbol":"X","t":0,"c":1}`, `{"symbol":"X","t":1,"c":0}`} {
		assert.ErrorIs(t, h.Handle(context.Background(), []byte(raw)), pkgkafka.ErrPermanent, raw)
	}
}
