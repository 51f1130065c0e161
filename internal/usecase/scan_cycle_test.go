package usecase

import (
	"context"
	"testing"
	"time"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/repository"
	"CoinRadar/internal/services/weights"
	"CoinRadar/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cycleFixture struct {
	cycle    *ScanCycle
	disc     *fakeDiscoverer
	prices   *slowPrices
	notifier *recordingNotifier
	signals  *repository.MemorySignalStore
	clk      *clock
	mem      *cache.MemoryCache
}

func newCycleFixture(t *testing.T, scores map[string]float64, opts ...CycleOption) *cycleFixture {
	t.Helper()
	clk := newClock()
	mem := cache.NewMemoryCache(cache.WithMemoryClock(clk.Now))
	t.Cleanup(func() { _ = mem.Close() })

	var cands []models.Candidate
	for _, sym := range []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF"} {
		cands = append(cands, candidate(sym))
	}
	f := &cycleFixture{
		disc:     &fakeDiscoverer{out: cands},
		prices:   &slowPrices{},
		notifier: &recordingNotifier{},
		signals:  repository.NewMemorySignalStore(clk.Now),
		clk:      clk,
		mem:      mem,
	}
	sched := NewAnalysisScheduler(f.prices, fixedScorer{scores: scores}, weights.New(weights.DefaultConfig()))
	lc := NewSignalLifecycle(f.signals, f.notifier, WithLifecycleClock(clk.Now))
	opts = append([]CycleOption{WithCycleClock(clk.Now), WithLocker(mem, time.Minute)}, opts...)
	f.cycle = NewScanCycle(f.disc, repository.NewCandidateCache(mem, 10*time.Minute, clk.Now), f.prices, sched, lc, opts...)
	return f
}

var cycleScores = map[string]float64{"AAA": 95, "BBB": 40, "CCC": 88, "DDD": 76, "EEE": 80, "FFF": 61}

func TestRunOnceRanksRecordsAndEmitsTopThree(t *testing.T) {
	f := newCycleFixture(t, cycleScores)

	rep, err := f.cycle.RunOnce(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 6, rep.Candidates)
	assert.False(t, rep.FromCache)
	assert.Equal(t, 6, rep.Scored)
	assert.Equal(t, 6, f.prices.count())

	var ranked []string
	for _, r := range rep.Ranked {
		ranked = append(ranked, r.Symbol)
	}
	assert.Equal(t, []string{"AAA", "CCC", "EEE", "DDD", "FFF"}, ranked)

	require.Len(t, rep.Emitted, 3)
	assert.Equal(t, "AAA", rep.Emitted[0].Symbol)
	assert.Equal(t, "CCC", rep.Emitted[1].Symbol)
	assert.Equal(t, "EEE", rep.Emitted[2].Symbol)
	assert.Len(t, f.notifier.all(), 3)

	p := f.cycle.Predictions(2)
	require.Len(t, p.Results, 2)
	assert.Equal(t, "AAA", p.Results[0].Symbol)
	assert.Equal(t, f.clk.Now(), p.UpdatedAt)
}

func TestRunOnceWithoutEmitCreatesNoSignals(t *testing.T) {
	f := newCycleFixture(t, cycleScores)

	rep, err := f.cycle.RunOnce(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, rep.Emitted)
	assert.Empty(t, f.notifier.all())
	assert.Len(t, f.cycle.Predictions(0).Results, 5)
}

func TestRunOnceUsesFreshCache(t *testing.T) {
	f := newCycleFixture(t, cycleScores)
	ctx := context.Background()

	_, err := f.cycle.RunOnce(ctx, false)
	require.NoError(t, err)
	f.clk.Advance(5 * time.Minute)
	rep, err := f.cycle.RunOnce(ctx, false)
	require.NoError(t, err)
	assert.True(t, rep.FromCache)
	assert.Equal(t, int32(1), f.disc.calls.Load())
	assert.Equal(t, 6, f.prices.count())

	f.clk.Advance(10 * time.Minute)
	rep, err = f.cycle.RunOnce(ctx, false)
	require.NoError(t, err)
	assert.False(t, rep.FromCache)
	assert.Equal(t, int32(2), f.disc.calls.Load())
}

func TestRunOnceDeduplicatedSymbolKeepsItsSlot(t *testing.T) {
	f := newCycleFixture(t, cycleScores)
	ctx := context.Background()

	_, err := f.cycle.RunOnce(ctx, true)
	require.NoError(t, err)
	f.clk.Advance(15 * time.Minute)
	rep, err := f.cycle.RunOnce(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, rep.Emitted)
	assert.Len(t, f.notifier.all(), 3)
}

func TestRunOnceDiscoveryFailure(t *testing.T) {
	f := newCycleFixture(t, cycleScores)
	f.disc.err = models.ErrDiscoveryFailed

	_, err := f.cycle.RunOnce(context.Background(), true)
	assert.ErrorIs(t, err, models.ErrDiscoveryFailed)
	assert.Empty(t, f.cycle.Predictions(0).Results)
}

func TestRunOnceSkipsOverlappingCycle(t *testing.T) {
	f := newCycleFixture(t, cycleScores)

	f.cycle.mu.Lock()
	_, err := f.cycle.RunOnce(context.Background(), true)
	f.cycle.mu.Unlock()
	assert.ErrorIs(t, err, ErrCycleInProgress)

	ok, err := f.mem.TryLock(context.Background(), scanLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.cycle.RunOnce(context.Background(), true)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	require.NoError(t, f.mem.Unlock(context.Background(), scanLockKey))

	_, err = f.cycle.RunOnce(context.Background(), true)
	assert.NoError(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newCycleFixture(t, cycleScores, WithCadence(time.Hour, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.cycle.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.cycle.Predictions(0).Results) > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
