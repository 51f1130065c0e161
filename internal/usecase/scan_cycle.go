package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	domsvc "CoinRadar/internal/domain/service"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/metrics"
)

const (
	DefaultCycleInterval = 15 * time.Minute
	DefaultRetryAfter    = time.Minute
	DefaultMaxEmit       = 3

	scanLockKey = "lock:scan"
)

// ErrCycleInProgress is returned when another scan cycle holds the lock.
var ErrCycleInProgress = errors.New("scan cycle already running")

// Locker is an optional cross-process lock around a cycle.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Predictions is the latest ranked snapshot served to readers.
type Predictions struct {
	Results   []models.ScoreResult `json:"results"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// CycleReport summarises one scan cycle.
type CycleReport struct {
	StartedAt  time.Time            `json:"started_at"`
	Took       time.Duration        `json:"took"`
	Candidates int                  `json:"candidates"`
	FromCache  bool                 `json:"from_cache"`
	Scored     int                  `json:"scored"`
	Ranked     []models.ScoreResult `json:"ranked"`
	Emitted    []models.Signal      `json:"emitted"`
}

// ScanCycle runs discovery, price recording, analysis and emission.
// Cycles never overlap.
type ScanCycle struct {
	discoverer domsvc.Discoverer
	cache      domrepo.CandidateCache
	prices     domrepo.PriceStore
	scheduler  *AnalysisScheduler
	lifecycle  *SignalLifecycle
	locker     Locker
	lockTTL    time.Duration

	minScore  float64
	emitScore float64
	keep      int
	maxEmit   int
	interval  time.Duration
	retry     time.Duration

	metrics domrepo.Metrics
	l       *applogger.Logger
	now     func() time.Time

	mu          sync.Mutex
	predictions atomic.Pointer[Predictions]
}

type CycleOption func(*ScanCycle)

// WithThresholds sets the inclusion and emission scores.
func WithThresholds(minScore, emitScore float64) CycleOption {
	return func(c *ScanCycle) {
		c.minScore = minScore
		c.emitScore = emitScore
	}
}

// WithLimits sets how many ranked results are kept and how many may be emitted per cycle.
func WithLimits(keep, maxEmit int) CycleOption {
	return func(c *ScanCycle) {
		if keep > 0 {
			c.keep = keep
		}
		if maxEmit >= 0 {
			c.maxEmit = maxEmit
		}
	}
}

func WithCadence(interval, retryAfter time.Duration) CycleOption {
	return func(c *ScanCycle) {
		if interval > 0 {
			c.interval = interval
		}
		if retryAfter > 0 {
			c.retry = retryAfter
		}
	}
}

// WithLocker adds a cross-process lock held for at most ttl.
func WithLocker(l Locker, ttl time.Duration) CycleOption {
	return func(c *ScanCycle) {
		c.locker = l
		c.lockTTL = ttl
	}
}

func WithCycleMetrics(m domrepo.Metrics) CycleOption {
	return func(c *ScanCycle) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithCycleLogger(l *applogger.Logger) CycleOption {
	return func(c *ScanCycle) {
		if l != nil {
			c.l = l
		}
	}
}

func WithCycleClock(now func() time.Time) CycleOption {
	return func(c *ScanCycle) { c.now = now }
}

// NewScanCycle wires a cycle. lifecycle may be nil, in which case nothing is emitted.
func NewScanCycle(d domsvc.Discoverer, cache domrepo.CandidateCache, prices domrepo.PriceStore,
	scheduler *AnalysisScheduler, lifecycle *SignalLifecycle, opts ...CycleOption,
) *ScanCycle {
	c := &ScanCycle{
		discoverer: d,
		cache:      cache,
		prices:     prices,
		scheduler:  scheduler,
		lifecycle:  lifecycle,
		lockTTL:    10 * time.Minute,
		minScore:   DefaultInclusionScore,
		emitScore:  DefaultEmissionScore,
		keep:       DefaultPredictionsKept,
		maxEmit:    DefaultMaxEmit,
		interval:   DefaultCycleInterval,
		retry:      DefaultRetryAfter,
		metrics:    metrics.Nop{},
		l:          applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes a cycle immediately and then on the configured cadence until ctx ends.
// A failed cycle is retried after the shorter retry delay.
func (c *ScanCycle) Run(ctx context.Context) error {
	for {
		next := c.interval
		if _, err := c.RunOnce(ctx, true); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, ErrCycleInProgress) {
				next = c.retry
			}
			c.l.Warn("scan cycle failed", applogger.Error(err), applogger.Duration("retry_in", next))
		}
		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// RunOnce runs one cycle. With emit false the ranking is produced but no signal is created.
func (c *ScanCycle) RunOnce(ctx context.Context, emit bool) (CycleReport, error) {
	if !c.mu.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer c.mu.Unlock()

	if c.locker != nil {
		ok, err := c.locker.TryLock(ctx, scanLockKey, c.lockTTL)
		if err != nil {
			return CycleReport{}, fmt.Errorf("acquire scan lock: %w", err)
		}
		if !ok {
			return CycleReport{}, ErrCycleInProgress
		}
		defer func() {
			if err := c.locker.Unlock(context.WithoutCancel(ctx), scanLockKey); err != nil {
				c.l.Warn("release scan lock failed", applogger.Error(err))
			}
		}()
	}

	rep := CycleReport{StartedAt: c.now().UTC()}
	start := time.Now()

	candidates, fromCache, err := c.candidates(ctx)
	if err != nil {
		c.metrics.RecordError("scan_discovery")
		return rep, err
	}
	rep.Candidates, rep.FromCache = len(candidates), fromCache

	if !fromCache {
		c.recordPrices(ctx, candidates, rep.StartedAt)
	}

	results := c.scheduler.AnalyzeAll(ctx, candidates)
	rep.Scored = len(results)
	rep.Ranked = Rank(results, c.minScore)

	top := rep.Ranked
	if len(top) > c.keep {
		top = top[:c.keep]
	}
	c.predictions.Store(&Predictions{Results: append([]models.ScoreResult(nil), top...), UpdatedAt: rep.StartedAt})

	if emit && c.lifecycle != nil {
		rep.Emitted = c.emit(ctx, rep.Ranked)
	}

	rep.Took = time.Since(start)
	c.metrics.RecordLatency("scan_cycle", rep.Took.Seconds())
	c.l.Info("scan cycle done",
		applogger.Int("candidates", rep.Candidates),
		applogger.Bool("from_cache", rep.FromCache),
		applogger.Int("scored", rep.Scored),
		applogger.Int("ranked", len(rep.Ranked)),
		applogger.Int("emitted", len(rep.Emitted)),
		applogger.Duration("took", rep.Took),
	)
	return rep, nil
}

// Predictions returns the latest top results, at most limit when limit > 0.
func (c *ScanCycle) Predictions(limit int) Predictions {
	p := c.predictions.Load()
	if p == nil {
		return Predictions{Results: []models.ScoreResult{}}
	}
	out := *p
	if limit > 0 && len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}
	out.Results = append([]models.ScoreResult(nil), out.Results...)
	return out
}

func (c *ScanCycle) candidates(ctx context.Context) ([]models.Candidate, bool, error) {
	if c.cache != nil {
		cached, fresh, err := c.cache.Get(ctx)
		if err != nil {
			c.metrics.RecordError("candidate_cache")
			c.l.Warn("candidate cache read failed", applogger.Error(err))
		} else if fresh {
			return cached, true, nil
		}
	}

	found, err := c.discoverer.Discover(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("discover candidates: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Put(ctx, found); err != nil {
			c.metrics.RecordError("candidate_cache")
			c.l.Warn("candidate cache write failed", applogger.Error(err))
		}
	}
	return found, false, nil
}

// recordPrices appends the current market snapshot of every well-formed candidate.
func (c *ScanCycle) recordPrices(ctx context.Context, candidates []models.Candidate, at time.Time) {
	points := make([]models.PricePoint, 0, len(candidates))
	for _, cand := range candidates {
		m, err := cand.Metrics()
		if err != nil {
			continue
		}
		points = append(points, models.PricePoint{
			Symbol:     cand.Symbol,
			Price:      m.Price,
			Volume:     m.Volume24h,
			MarketCap:  m.MarketCap,
			CapturedAt: at.Truncate(time.Second),
		})
	}
	if len(points) == 0 {
		return
	}
	if err := c.prices.AppendPricePoints(ctx, points); err != nil {
		c.metrics.RecordError("price_record")
		c.l.Warn("price recording failed", applogger.Int("points", len(points)), applogger.Error(err))
	}
}

// emit considers the top maxEmit results at or above the emission score.
// A deduplicated symbol still uses its slot.
func (c *ScanCycle) emit(ctx context.Context, ranked []models.ScoreResult) []models.Signal {
	var out []models.Signal
	considered := 0
	for _, r := range ranked {
		if considered >= c.maxEmit || r.FinalScore < c.emitScore {
			break
		}
		considered++
		sig, created, err := c.lifecycle.Emit(ctx, r)
		if err != nil {
			c.l.Error("signal emission failed", applogger.String("symbol", r.Symbol), applogger.Error(err))
		}
		if created {
			out = append(out, sig)
		}
	}
	return out
}
