package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	domsvc "CoinRadar/internal/domain/service"
	applogger "CoinRadar/pkg/logger"
)

// Aggregator merges the output of independent discovery strategies.
// Strategies run concurrently; their outputs are merged in registration order
// and the first record seen for a symbol wins.
type Aggregator struct {
	strategies []domrepo.DiscoveryStrategy
	newCoin    NewCoinHeuristic
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

type AggregatorOption func(*Aggregator)

func WithNewCoinHeuristic(h NewCoinHeuristic) AggregatorOption {
	return func(a *Aggregator) { a.newCoin = h }
}

func WithMetrics(m domrepo.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func WithLogger(l *applogger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.l = l
		}
	}
}

func NewAggregator(strategies []domrepo.DiscoveryStrategy, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		strategies: strategies,
		newCoin:    DefaultNewCoinHeuristic(),
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ domsvc.Discoverer = (*Aggregator)(nil)

// Discover returns the deduplicated candidate universe. A failing strategy is skipped;
// ErrDiscoveryFailed is returned only when every strategy failed.
func (a *Aggregator) Discover(ctx context.Context) ([]models.Candidate, error) {
	if len(a.strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies configured", models.ErrDiscoveryFailed)
	}

	outputs := make([][]models.MarketRecord, len(a.strategies))
	errs := make([]error, len(a.strategies))

	var g errgroup.Group
	for i, s := range a.strategies {
		g.Go(func() error {
			start := time.Now()
			outputs[i], errs[i] = s.Fetch(ctx)
			if a.metrics != nil {
				a.metrics.RecordLatency("discovery_"+string(s.Source()), time.Since(start).Seconds())
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []models.Candidate
		seen   = make(map[string]struct{})
		failed []error
	)
	for i, s := range a.strategies {
		src := s.Source()
		if errs[i] != nil {
			failed = append(failed, errs[i])
			a.l.Warn("discovery strategy failed", applogger.String("source", string(src)), applogger.Error(errs[i]))
			if a.metrics != nil {
				a.metrics.RecordError("discovery_" + string(src))
			}
			continue
		}
		added := 0
		for _, r := range outputs[i] {
			c := models.NewCandidate(r, src)
			if c.Symbol == "" {
				continue
			}
			if _, dup := seen[c.Symbol]; dup {
				continue
			}
			seen[c.Symbol] = struct{}{}
			c.IsNew = a.newCoin.IsNewCoin(c.MarketCap, c.Volume24h)
			out = append(out, c)
			added++
		}
		if a.metrics != nil {
			a.metrics.RecordCandidates(string(src), added)
		}
		a.l.Debug("discovery strategy merged",
			applogger.String("source", string(src)),
			applogger.Int("fetched", len(outputs[i])),
			applogger.Int("added", added),
		)
	}

	if len(failed) == len(a.strategies) {
		return nil, fmt.Errorf("%w: %w", models.ErrDiscoveryFailed, errors.Join(failed...))
	}
	return out, nil
}
