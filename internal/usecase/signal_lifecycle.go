package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/metrics"
	"CoinRadar/pkg/util"

	"github.com/google/uuid"
)

const DefaultDedupWindow = 24 * time.Hour

// SignalLifecycle emits signals and applies outcome feedback to them.
type SignalLifecycle struct {
	store       domrepo.SignalStore
	notifier    domrepo.Notifier
	metrics     domrepo.Metrics
	l           *applogger.Logger
	dedupWindow time.Duration
	now         func() time.Time
}

type LifecycleOption func(*SignalLifecycle)

// WithDedupWindow sets how long an active signal blocks re-emission of its symbol.
func WithDedupWindow(d time.Duration) LifecycleOption {
	return func(lc *SignalLifecycle) { lc.dedupWindow = d }
}

func WithLifecycleMetrics(m domrepo.Metrics) LifecycleOption {
	return func(lc *SignalLifecycle) {
		if m != nil {
			lc.metrics = m
		}
	}
}

func WithLifecycleLogger(l *applogger.Logger) LifecycleOption {
	return func(lc *SignalLifecycle) {
		if l != nil {
			lc.l = l
		}
	}
}

func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(lc *SignalLifecycle) { lc.now = now }
}

func NewSignalLifecycle(store domrepo.SignalStore, notifier domrepo.Notifier, opts ...LifecycleOption) *SignalLifecycle {
	lc := &SignalLifecycle{
		store:       store,
		notifier:    notifier,
		metrics:     metrics.Nop{},
		l:           applogger.Nop(),
		dedupWindow: DefaultDedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// Emit persists an active signal for res and publishes it with its outcome actions.
// It reports false without error when the symbol already has an active signal inside
// the dedup window. A notification failure is returned after the signal is stored.
func (lc *SignalLifecycle) Emit(ctx context.Context, res models.ScoreResult) (models.Signal, bool, error) {
	now := lc.now().UTC()
	if lc.dedupWindow > 0 {
		prev, err := lc.store.FindActiveBySymbol(ctx, res.Symbol, now.Add(-lc.dedupWindow))
		switch {
		case err == nil:
			lc.metrics.RecordSignal("deduplicated")
			lc.l.Debug("signal deduplicated", applogger.String("symbol", res.Symbol), applogger.String("active_id", prev.ID))
			return prev, false, nil
		case !errors.Is(err, models.ErrSignalNotFound):
			return models.Signal{}, false, fmt.Errorf("find active signal %s: %w", res.Symbol, err)
		}
	}

	sig := models.Signal{
		ID:              uuid.NewString(),
		Symbol:          res.Symbol,
		Score:           res.FinalScore,
		Price:           res.Price,
		DiscoverySource: res.DiscoverySource,
		IsNew:           res.IsNew,
		BonusApplied:    res.BonusApplied,
		Type:            models.SignalTypeAuto,
		Status:          models.StatusActive,
		Analysis:        res.Explanations(),
		CreatedAt:       now,
	}
	id, err := lc.store.CreateSignal(ctx, sig)
	if err != nil {
		lc.metrics.RecordError("signal_create")
		return models.Signal{}, false, fmt.Errorf("create signal %s: %w", res.Symbol, err)
	}
	sig.ID = id
	lc.metrics.RecordSignal(string(models.StatusActive))

	ev := models.SignalEvent{
		Signal:    sig,
		Result:    res,
		Actions:   models.SignalActions(sig.ID, sig.Symbol),
		PriceText: util.FormatPrice(res.Price),
		EmittedAt: now,
	}
	if err := lc.notifier.Notify(ctx, ev); err != nil {
		lc.metrics.RecordError("notify")
		return sig, true, fmt.Errorf("notify signal %s: %w", sig.ID, err)
	}
	lc.l.Info("signal emitted",
		applogger.String("id", sig.ID),
		applogger.String("symbol", sig.Symbol),
		applogger.Float64("score", sig.Score),
	)
	return sig, true, nil
}

// RecordFeedback applies an outcome to an active signal.
func (lc *SignalLifecycle) RecordFeedback(ctx context.Context, signalID, outcome, comment string) (models.Signal, error) {
	o, err := models.ParseOutcome(outcome)
	if err != nil {
		return models.Signal{}, err
	}
	sig, err := lc.store.RecordFeedback(ctx, signalID, o, comment, lc.now().UTC())
	if err != nil {
		if !errors.Is(err, models.ErrSignalNotFound) && !errors.Is(err, models.ErrSignalClosed) {
			lc.metrics.RecordError("feedback_store")
		}
		return models.Signal{}, fmt.Errorf("record feedback %s: %w", signalID, err)
	}
	lc.metrics.RecordSignal(string(o))
	lc.l.Info("signal feedback recorded",
		applogger.String("id", sig.ID),
		applogger.String("symbol", sig.Symbol),
		applogger.String("outcome", string(o)),
	)
	return sig, nil
}

// HandleCallback decodes an outcome action string and records it.
func (lc *SignalLifecycle) HandleCallback(ctx context.Context, data, comment string) (models.Signal, error) {
	cb, err := models.ParseCallback(data)
	if err != nil {
		return models.Signal{}, err
	}
	return lc.RecordFeedback(ctx, cb.SignalID, string(cb.Outcome), comment)
}

// Apply routes a feedback event to RecordFeedback or HandleCallback.
func (lc *SignalLifecycle) Apply(ctx context.Context, ev models.FeedbackEvent) (models.Signal, error) {
	if ev.Callback != "" {
		return lc.HandleCallback(ctx, ev.Callback, ev.Comment)
	}
	if ev.SignalID == "" {
		return models.Signal{}, fmt.Errorf("%w: signal id missing", models.ErrSignalNotFound)
	}
	return lc.RecordFeedback(ctx, ev.SignalID, ev.Outcome, ev.Comment)
}

func (lc *SignalLifecycle) GetSignal(ctx context.Context, id string) (models.Signal, error) {
	return lc.store.GetSignal(ctx, id)
}

func (lc *SignalLifecycle) ListSignals(ctx context.Context, f models.SignalFilter) ([]models.Signal, error) {
	return lc.store.ListSignals(ctx, f)
}

func (lc *SignalLifecycle) Stats(ctx context.Context, lookbackDays int) (models.FeedbackStats, error) {
	return lc.store.GetFeedbackStats(ctx, domrepo.NormalizeLookback(lookbackDays))
}
