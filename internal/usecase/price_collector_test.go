package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CoinRadar/internal/domain/models"
	mid "CoinRadar/internal/middleware"
	"CoinRadar/internal/repository"
	"CoinRadar/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStream serves one batch of points per connection, then fails the read.
type scriptedStream struct {
	mu         sync.Mutex
	batches    [][]models.PricePoint
	connected  bool
	reconnects atomic.Int32
}

func (s *scriptedStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (<-chan models.PricePoint, <-chan error) {
	s.mu.Lock()
	var batch []models.PricePoint
	if len(s.batches) > 0 {
		batch, s.batches = s.batches[0], s.batches[1:]
	}
	s.mu.Unlock()

	pts := make(chan models.PricePoint, len(batch))
	errs := make(chan error, 1)
	for _, p := range batch {
		pts <- p
	}
	go func() {
		if len(batch) == 0 {
			<-ctx.Done()
			return
		}
		time.Sleep(20 * time.Millisecond)
		errs <- errors.New("connection reset")
	}()
	return pts, errs
}

func (s *scriptedStream) Reconnect(ctx context.Context) error {
	s.reconnects.Add(1)
	return s.Connect(ctx)
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *scriptedStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func TestPriceCollectorSamplesAndReconnects(t *testing.T) {
	t0 := time.Now().UTC().Truncate(time.Second)
	stream := &scriptedStream{batches: [][]models.PricePoint{
		{
			{Symbol: "BTC", Price: 1, CapturedAt: t0},
			{Symbol: "BTC", Price: 2, CapturedAt: t0.Add(time.Second)},
			{Symbol: "ETH", Price: 3, CapturedAt: t0},
		},
		{
			{Symbol: "BTC", Price: 4, CapturedAt: t0.Add(10 * time.Minute)},
		},
	}}
	store := repository.NewMemoryPriceStore()
	pipe := mid.NewPricePipeline(store, metrics.Nop{}, mid.WithSampleInterval(5*time.Minute), mid.WithBatch(100, time.Hour))
	c := NewPriceCollector(stream, pipe, metrics.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsConnected())

	require.Eventually(t, func() bool { return stream.reconnects.Load() >= 1 && pipe.Buffered() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Shutdown(context.Background()))

	btc, err := store.GetHistory(context.Background(), "BTC", 1)
	require.NoError(t, err)
	require.Len(t, btc, 2)
	assert.Equal(t, 1.0, btc[0].Price)
	assert.Equal(t, 4.0, btc[1].Price)
	eth, _ := store.GetHistory(context.Background(), "ETH", 1)
	assert.Len(t, eth, 1)
}
