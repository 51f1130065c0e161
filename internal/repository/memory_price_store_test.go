package repository

import (
	"context"
	"testing"
	"time"

	"CoinRadar/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPriceStoreOrdersAndDedups(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryPriceStore(WithPriceClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.AppendPricePoints(ctx, []models.PricePoint{
		{Symbol: "pepe", Price: 3, CapturedAt: now.Add(-1 * time.Hour)},
		{Symbol: "PEPE", Price: 1, CapturedAt: now.Add(-3 * time.Hour)},
		{Symbol: "PEPE", Price: 2, CapturedAt: now.Add(-2 * time.Hour)},
		{Symbol: "", Price: 9, CapturedAt: now},
	}))
	require.NoError(t, s.AppendPricePoint(ctx, models.PricePoint{Symbol: "PEPE", Price: 2.5, CapturedAt: now.Add(-2 * time.Hour)}))

	hist, err := s.GetHistory(ctx, "pepe", 30)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, models.Closes(hist))
}

func TestMemoryPriceStoreLookback(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryPriceStore(WithPriceClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.AppendPricePoints(ctx, []models.PricePoint{
		{Symbol: "BTC", Price: 1, CapturedAt: now.AddDate(0, 0, -40)},
		{Symbol: "BTC", Price: 2, CapturedAt: now.AddDate(0, 0, -10)},
	}))

	hist, err := s.GetHistory(ctx, "BTC", 30)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 2.0, hist[0].Price)

	empty, err := s.GetHistory(ctx, "NOPE", 30)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryPriceStoreAuditRetention(t *testing.T) {
	s := NewMemoryPriceStore(WithAuditRetention(2))
	ctx := context.Background()
	for _, sym := range []string{"A", "B", "C"} {
		require.NoError(t, s.RecordIndicators(ctx, []models.IndicatorSnapshot{{Symbol: sym}}))
	}
	snaps := s.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "B", snaps[0].Symbol)
	assert.Equal(t, "C", snaps[1].Symbol)
}
