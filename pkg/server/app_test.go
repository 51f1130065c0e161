package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/repository"
	"CoinRadar/internal/services/scoring"
	"CoinRadar/internal/services/weights"
	"CoinRadar/internal/usecase"
	"CoinRadar/pkg/cache"
	xhttp "CoinRadar/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDiscoverer struct {
	calls atomic.Int32
	out   []models.Candidate
}

func (d *staticDiscoverer) Discover(context.Context) ([]models.Candidate, error) {
	d.calls.Add(1)
	return d.out, nil
}

func newTestApp(t *testing.T, d *staticDiscoverer) *App {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	prices := repository.NewMemoryPriceStore()
	signals := repository.NewMemorySignalStore(nil)
	model := weights.New(weights.DefaultConfig())
	scheduler := usecase.NewAnalysisScheduler(prices, scoring.New(), model)
	lifecycle := usecase.NewSignalLifecycle(signals, repository.NewLogNotifier(nil, 0))
	cycle := usecase.NewScanCycle(d, repository.NewCandidateCache(mc, time.Minute, nil), prices, scheduler, lifecycle)
	retrain := usecase.NewRetrainJob(model, signals, repository.NewCacheWeightStore(mc))
	srv := xhttp.NewServer(nil, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))

	return New(nil, cycle, retrain, nil, nil, nil, nil, srv, time.Second)
}

func TestScanOnce(t *testing.T) {
	d := &staticDiscoverer{out: []models.Candidate{{
		Symbol:          "ARB",
		Name:            "Arbitrum",
		Price:           models.Float(1.2),
		MarketCap:       models.Float(40e6),
		Volume24h:       models.Float(15e6),
		PriceChange24h:  models.Float(12),
		DiscoverySource: models.SourceVolumeScreener,
	}}}
	app := newTestApp(t, d)

	rep, err := app.ScanOnce(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Candidates)
	assert.Equal(t, 1, rep.Scored)
	assert.False(t, rep.FromCache)
	assert.Empty(t, rep.Emitted)

	// second run is served from the candidate cache
	rep, err = app.ScanOnce(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, rep.FromCache)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestRetrainOnceWithoutFeedback(t *testing.T) {
	app := newTestApp(t, &staticDiscoverer{})

	rep, err := app.RetrainOnce(context.Background())
	assert.ErrorIs(t, err, models.ErrInsufficientSample)
	assert.False(t, rep.Changed)
	assert.Equal(t, 1.0, rep.Weights.NewCoinBonus)
}

type recordingService struct {
	started, stopped atomic.Bool
}

func (s *recordingService) Start(context.Context) error { s.started.Store(true); return nil }
func (s *recordingService) Stop(context.Context) error  { s.stopped.Store(true); return nil }

func TestRunStopsOnCancel(t *testing.T) {
	d := &staticDiscoverer{}
	app := newTestApp(t, d)
	svc := &recordingService{}
	app.background = []Service{svc}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	assert.Eventually(t, func() bool { return d.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, svc.started.Load())
	assert.True(t, svc.stopped.Load())
}
