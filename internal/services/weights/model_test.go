package weights

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRadar/internal/domain/models"
)

func stats(newSuccess, newFail, oldSuccess, oldFail int) models.FeedbackStats {
	s := models.NewFeedbackStats(30)
	s.Add(models.SourceNewCoinSearch, true, models.StatusSuccess, newSuccess)
	s.Add(models.SourceNewCoinSearch, true, models.StatusFail, newFail)
	s.Add(models.SourceTopMarketCap, false, models.StatusSuccess, oldSuccess)
	s.Add(models.SourceTopMarketCap, false, models.StatusFail, oldFail)
	return s
}

func TestRetrainNoOpBelowMinimumSample(t *testing.T) {
	m := New(DefaultConfig())
	before := m.Snapshot()

	s := stats(5, 0, 0, 4)
	s.Add(models.SourceTopMarketCap, false, models.StatusActive, 50)

	got, err := m.Retrain(s)
	require.ErrorIs(t, err, models.ErrInsufficientSample)
	assert.Equal(t, before, got)
	assert.Equal(t, before, m.Snapshot())
}

func TestRetrainRaisesBonusWhenNewCoinsOutperform(t *testing.T) {
	m := New(DefaultConfig())

	got, err := m.Retrain(stats(8, 2, 2, 8))
	require.NoError(t, err)
	assert.InDelta(t, 1.1, got.NewCoinBonus, 1e-9)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 1.0, got.VolumeRatio)
	assert.Equal(t, got, m.Snapshot())
}

func TestRetrainLowersBonusWhenNewCoinsUnderperform(t *testing.T) {
	m := New(DefaultConfig())

	got, err := m.Retrain(stats(1, 9, 9, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.NewCoinBonus, 1e-9)
}

func TestRetrainWithinMarginKeepsVector(t *testing.T) {
	m := New(DefaultConfig())
	before := m.Snapshot()

	got, err := m.Retrain(stats(5, 5, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, before, got)
}

func TestRetrainClampsAtBounds(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg)
	for i := 0; i < 30; i++ {
		_, err := m.Retrain(stats(10, 0, 0, 10))
		require.NoError(t, err)
	}
	assert.Equal(t, cfg.Bounds.Max, m.Snapshot().NewCoinBonus)

	for i := 0; i < 40; i++ {
		_, err := m.Retrain(stats(0, 10, 10, 0))
		require.NoError(t, err)
	}
	assert.Equal(t, cfg.Bounds.Min, m.Snapshot().NewCoinBonus)
}

func TestRestoreClampsPersistedVector(t *testing.T) {
	m := New(DefaultConfig())
	got := m.Restore(models.WeightVector{VolumeRatio: 5, PriceMomentum: 0.1, MarketCap: 1, TechnicalIndicators: 1, NewCoinBonus: 1.3, Version: 7})
	assert.Equal(t, 2.0, got.VolumeRatio)
	assert.Equal(t, 0.5, got.PriceMomentum)
	assert.Equal(t, int64(7), m.Snapshot().Version)
}

func TestSnapshotsAreConsistentUnderConcurrentRetrain(t *testing.T) {
	m := New(DefaultConfig())
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				_, _ = m.Retrain(stats(10, 0, 0, 10))
			} else {
				_, _ = m.Retrain(stats(0, 10, 10, 0))
			}
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					w := m.Snapshot()
					if w.VolumeRatio != 1 || w.NewCoinBonus < 0.5 || w.NewCoinBonus > 2 {
						t.Errorf("torn snapshot: %+v", w)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
