package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	domsvc "CoinRadar/internal/domain/service"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/metrics"
)

const DefaultRetrainEvery = 24 * time.Hour

// RetrainJob periodically adapts the weight model from feedback and persists the result.
// It is the only writer of the model.
type RetrainJob struct {
	model        domsvc.WeightModel
	signals      domrepo.SignalStore
	store        domrepo.WeightStore
	every        time.Duration
	lookbackDays int
	metrics      domrepo.Metrics
	l            *applogger.Logger
}

type RetrainOption func(*RetrainJob)

func WithRetrainEvery(d time.Duration) RetrainOption {
	return func(j *RetrainJob) {
		if d > 0 {
			j.every = d
		}
	}
}

func WithRetrainLookback(days int) RetrainOption {
	return func(j *RetrainJob) { j.lookbackDays = domrepo.NormalizeLookback(days) }
}

func WithRetrainMetrics(m domrepo.Metrics) RetrainOption {
	return func(j *RetrainJob) {
		if m != nil {
			j.metrics = m
		}
	}
}

func WithRetrainLogger(l *applogger.Logger) RetrainOption {
	return func(j *RetrainJob) {
		if l != nil {
			j.l = l
		}
	}
}

// NewRetrainJob wires the job. store may be nil to keep weights in memory only.
func NewRetrainJob(model domsvc.WeightModel, signals domrepo.SignalStore, store domrepo.WeightStore, opts ...RetrainOption) *RetrainJob {
	j := &RetrainJob{
		model:        model,
		signals:      signals,
		store:        store,
		every:        DefaultRetrainEvery,
		lookbackDays: domrepo.DefaultLookbackDays,
		metrics:      metrics.Nop{},
		l:            applogger.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Restore loads the persisted snapshot into the model, if there is one.
func (j *RetrainJob) Restore(ctx context.Context) (models.WeightVector, error) {
	if j.store == nil {
		return j.model.Snapshot(), nil
	}
	w, ok, err := j.store.LoadWeights(ctx)
	if err != nil {
		return j.model.Snapshot(), fmt.Errorf("load weights: %w", err)
	}
	if !ok {
		w = j.model.Snapshot()
		j.l.Info("no persisted weights, using initial vector", applogger.Int64("version", w.Version))
	} else {
		w = j.model.Restore(w)
		j.l.Info("weights restored", applogger.Int64("version", w.Version), applogger.Float64("new_coin_bonus", w.NewCoinBonus))
	}
	j.metrics.RecordWeights(w)
	return w, nil
}

// RunOnce performs one retrain pass. It reports whether the vector changed.
// ErrInsufficientSample is returned unchanged so callers can tell a skip from a failure.
func (j *RetrainJob) RunOnce(ctx context.Context) (models.WeightVector, bool, error) {
	before := j.model.Snapshot()
	stats, err := j.signals.GetFeedbackStats(ctx, j.lookbackDays)
	if err != nil {
		j.metrics.RecordError("retrain_stats")
		return before, false, fmt.Errorf("load feedback stats: %w", err)
	}

	w, err := j.model.Retrain(stats)
	if err != nil {
		return before, false, err
	}
	if w.Version == before.Version {
		j.l.Info("retrain kept weights",
			applogger.Int("terminal", stats.Totals.Terminal()),
			applogger.Float64("success_rate", stats.Totals.SuccessRate()),
			applogger.Float64("new_coin_success_rate", stats.NewCoin.SuccessRate()),
		)
		return w, false, nil
	}

	j.metrics.RecordWeights(w)
	j.l.Info("weights retrained",
		applogger.Int64("version", w.Version),
		applogger.Float64("new_coin_bonus", w.NewCoinBonus),
		applogger.Float64("previous_new_coin_bonus", before.NewCoinBonus),
	)
	if j.store != nil {
		if err := j.store.SaveWeights(ctx, w); err != nil {
			j.metrics.RecordError("weights_save")
			return w, true, fmt.Errorf("save weights: %w", err)
		}
	}
	return w, true, nil
}

// Run retrains on every tick until ctx ends. Failures are logged, never fatal.
func (j *RetrainJob) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, _, err := j.RunOnce(ctx); err != nil {
				if errors.Is(err, models.ErrInsufficientSample) {
					j.l.Info("retrain skipped", applogger.Error(err))
					continue
				}
				j.l.Warn("retrain failed", applogger.Error(err))
			}
		}
	}
}
