package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	domsvc "CoinRadar/internal/domain/service"
	"CoinRadar/internal/services/indicators"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxInFlight     = 10
	DefaultInclusionScore  = 60.0
	DefaultEmissionScore   = 75.0
	DefaultPredictionsKept = 10
)

// AnalysisScheduler scores a candidate batch with bounded concurrency.
type AnalysisScheduler struct {
	prices       domrepo.PriceStore
	audit        domrepo.IndicatorAudit
	scorer       domsvc.Scorer
	weights      domsvc.WeightSource
	metrics      domrepo.Metrics
	l            *applogger.Logger
	maxInFlight  int
	lookbackDays int
	now          func() time.Time
}

type SchedulerOption func(*AnalysisScheduler)

func WithMaxInFlight(n int) SchedulerOption {
	return func(s *AnalysisScheduler) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

func WithLookbackDays(days int) SchedulerOption {
	return func(s *AnalysisScheduler) { s.lookbackDays = domrepo.NormalizeLookback(days) }
}

// WithIndicatorAudit records the indicator set behind every successful score.
func WithIndicatorAudit(a domrepo.IndicatorAudit) SchedulerOption {
	return func(s *AnalysisScheduler) { s.audit = a }
}

func WithSchedulerMetrics(m domrepo.Metrics) SchedulerOption {
	return func(s *AnalysisScheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(s *AnalysisScheduler) {
		if l != nil {
			s.l = l
		}
	}
}

func NewAnalysisScheduler(prices domrepo.PriceStore, scorer domsvc.Scorer, weights domsvc.WeightSource, opts ...SchedulerOption) *AnalysisScheduler {
	s := &AnalysisScheduler{
		prices:       prices,
		scorer:       scorer,
		weights:      weights,
		metrics:      metrics.Nop{},
		l:            applogger.Nop(),
		maxInFlight:  DefaultMaxInFlight,
		lookbackDays: domrepo.DefaultLookbackDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type analysis struct {
	result models.ScoreResult
	snap   models.IndicatorSnapshot
}

// AnalyzeAll scores every candidate under one weights snapshot. Failed analyses are
// logged and omitted; the rest is returned sorted by final score, ties in input order.
func (s *AnalysisScheduler) AnalyzeAll(ctx context.Context, candidates []models.Candidate) []models.ScoreResult {
	if len(candidates) == 0 {
		return nil
	}
	start := time.Now()
	w := s.weights.Snapshot()
	slots := make([]*analysis, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.maxInFlight)
	for i, c := range candidates {
		g.Go(func() error {
			a, err := s.analyze(ctx, c, w)
			if err != nil {
				s.metrics.RecordAnalysis(false)
				s.l.Warn("analysis failed", applogger.String("symbol", c.Symbol), applogger.Error(err))
				return nil
			}
			s.metrics.RecordAnalysis(true)
			s.metrics.RecordScore(a.result.Symbol, a.result.FinalScore)
			slots[i] = &a
			return nil
		})
	}
	_ = g.Wait()

	results := make([]models.ScoreResult, 0, len(candidates))
	snaps := make([]models.IndicatorSnapshot, 0, len(candidates))
	for _, a := range slots {
		if a == nil {
			continue
		}
		results = append(results, a.result)
		snaps = append(snaps, a.snap)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].FinalScore > results[j].FinalScore })

	if s.audit != nil && len(snaps) > 0 {
		if err := s.audit.RecordIndicators(ctx, snaps); err != nil {
			s.metrics.RecordError("indicator_audit")
			s.l.Warn("indicator audit failed", applogger.Int("snapshots", len(snaps)), applogger.Error(err))
		}
	}
	s.metrics.RecordLatency("analysis_batch", time.Since(start).Seconds())
	s.l.Info("analysis batch done",
		applogger.Int("candidates", len(candidates)),
		applogger.Int("scored", len(results)),
		applogger.Int64("weights_version", w.Version),
		applogger.Duration("took", time.Since(start)),
	)
	return results
}

func (s *AnalysisScheduler) analyze(ctx context.Context, c models.Candidate, w models.WeightVector) (a analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyze %s: panic: %v", c.Symbol, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return a, err
	}
	if _, err := c.Metrics(); err != nil {
		return a, err
	}
	points, err := s.prices.GetHistory(ctx, c.Symbol, s.lookbackDays)
	if err != nil {
		return a, fmt.Errorf("load history %s: %w", c.Symbol, err)
	}
	ind := indicators.Compute(points)
	res, err := s.scorer.Score(c, ind, w)
	if err != nil {
		return a, err
	}
	a.result = res
	a.snap = models.IndicatorSnapshot{Symbol: c.Symbol, Indicators: ind, Points: len(points), ComputedAt: s.now().UTC()}
	return a, nil
}

// Rank keeps results scoring at least minScore, preserving order.
func Rank(results []models.ScoreResult, minScore float64) []models.ScoreResult {
	out := make([]models.ScoreResult, 0, len(results))
	for _, r := range results {
		if r.FinalScore >= minScore {
			out = append(out, r)
		}
	}
	return out
}
