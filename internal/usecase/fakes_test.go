package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CoinRadar/internal/domain/models"
)

// slowPrices counts in-flight history reads.
type slowPrices struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32

	mu       sync.Mutex
	appended []models.PricePoint
}

func (p *slowPrices) GetHistory(_ context.Context, _ string, _ int) ([]models.PricePoint, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(p.delay)
	return nil, nil
}

func (p *slowPrices) AppendPricePoint(ctx context.Context, pt models.PricePoint) error {
	return p.AppendPricePoints(ctx, []models.PricePoint{pt})
}

func (p *slowPrices) AppendPricePoints(_ context.Context, pts []models.PricePoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appended = append(p.appended, pts...)
	return nil
}

func (p *slowPrices) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.appended)
}

// fixedScorer returns a preset score per symbol and panics on symbols marked for it.
type fixedScorer struct {
	scores map[string]float64
	panics map[string]bool
}

func (s fixedScorer) Score(c models.Candidate, ind models.IndicatorSet, w models.WeightVector) (models.ScoreResult, error) {
	if s.panics[c.Symbol] {
		panic("boom")
	}
	m, err := c.Metrics()
	if err != nil {
		return models.ScoreResult{}, err
	}
	return models.ScoreResult{
		Symbol:          c.Symbol,
		Price:           m.Price,
		DiscoverySource: c.DiscoverySource,
		IsNew:           c.IsNew,
		FinalScore:      s.scores[c.Symbol],
		BaseScore:       s.scores[c.Symbol],
		Indicators:      ind,
		WeightsVersion:  w.Version,
		Factors:         []models.Factor{{Name: "volume_ratio", Points: 20, Explanation: "extreme volume"}},
	}, nil
}

type fakeDiscoverer struct {
	calls atomic.Int32
	out   []models.Candidate
	err   error
}

func (d *fakeDiscoverer) Discover(context.Context) ([]models.Candidate, error) {
	d.calls.Add(1)
	return d.out, d.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SignalEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.SignalEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) all() []models.SignalEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.SignalEvent(nil), n.events...)
}

func candidate(sym string) models.Candidate {
	return models.Candidate{
		Symbol:          sym,
		Name:            sym,
		Price:           models.Float(1.5),
		MarketCap:       models.Float(40e6),
		Volume24h:       models.Float(15e6),
		PriceChange24h:  models.Float(10),
		DiscoverySource: models.SourceVolumeScreener,
	}
}

func candidates(n int) []models.Candidate {
	out := make([]models.Candidate, n)
	for i := range out {
		out[i] = candidate(fmt.Sprintf("C%02d", i))
	}
	return out
}

var errStoreDown = errors.New("store down")

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func itoa(n int64) string { return fmt.Sprintf("%d", n) }
