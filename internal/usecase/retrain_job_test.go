package usecase

import (
	"context"
	"testing"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/repository"
	"CoinRadar/internal/services/weights"
	"CoinRadar/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSignals(t *testing.T, store *repository.MemorySignalStore, isNew bool, status models.SignalStatus, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id, err := store.CreateSignal(ctx, models.Signal{Symbol: "X", IsNew: isNew, DiscoverySource: models.SourceNewCoinSearch})
		require.NoError(t, err)
		if status != models.StatusActive {
			_, err = store.RecordFeedback(ctx, id, status, "", newClock().Now())
			require.NoError(t, err)
		}
	}
}

func TestRetrainRaisesBonusAndPersists(t *testing.T) {
	clk := newClock()
	signals := repository.NewMemorySignalStore(clk.Now)
	seedSignals(t, signals, true, models.StatusSuccess, 6)
	seedSignals(t, signals, false, models.StatusFail, 6)

	mem := cache.NewMemoryCache()
	defer mem.Close()
	ws := repository.NewCacheWeightStore(mem)
	model := weights.New(weights.DefaultConfig())
	job := NewRetrainJob(model, signals, ws)

	w, changed, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 1.1, w.NewCoinBonus, 1e-9)
	assert.Equal(t, int64(2), w.Version)
	assert.Equal(t, 1.0, w.VolumeRatio)

	saved, ok, err := ws.LoadWeights(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w.Version, saved.Version)

	// a fresh model restores the persisted vector
	fresh := NewRetrainJob(weights.New(weights.DefaultConfig()), signals, ws)
	restored, err := fresh.Restore(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.1, restored.NewCoinBonus, 1e-9)
	assert.Equal(t, int64(2), restored.Version)
}

func TestRetrainBelowMinimumSampleIsNoop(t *testing.T) {
	signals := repository.NewMemorySignalStore(newClock().Now)
	seedSignals(t, signals, true, models.StatusSuccess, 5)
	seedSignals(t, signals, false, models.StatusActive, 20)

	model := weights.New(weights.DefaultConfig())
	before := model.Snapshot()
	job := NewRetrainJob(model, signals, nil)

	w, changed, err := job.RunOnce(context.Background())
	assert.ErrorIs(t, err, models.ErrInsufficientSample)
	assert.False(t, changed)
	assert.Equal(t, before, w)
	assert.Equal(t, before, model.Snapshot())
}

func TestRetrainWithinMarginKeepsVersion(t *testing.T) {
	signals := repository.NewMemorySignalStore(newClock().Now)
	seedSignals(t, signals, true, models.StatusSuccess, 5)
	seedSignals(t, signals, true, models.StatusFail, 5)
	seedSignals(t, signals, false, models.StatusSuccess, 5)
	seedSignals(t, signals, false, models.StatusFail, 5)

	job := NewRetrainJob(weights.New(weights.DefaultConfig()), signals, nil)
	w, changed, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(1), w.Version)
}

func TestRestoreWithoutPersistedWeights(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	model := weights.New(weights.DefaultConfig())
	job := NewRetrainJob(model, repository.NewMemorySignalStore(nil), repository.NewCacheWeightStore(mem))

	w, err := job.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Snapshot(), w)
}
