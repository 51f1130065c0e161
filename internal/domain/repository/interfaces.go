package repository

import (
	"context"
	"time"

	"CoinRadar/internal/domain/models"
)

// PriceStore is the time-series gateway over recorded price points.
type PriceStore interface {
	// GetHistory returns the symbol's points of the last lookbackDays, ascending by time.
	// An empty result is valid.
	GetHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error)
	AppendPricePoint(ctx context.Context, p models.PricePoint) error
	AppendPricePoints(ctx context.Context, points []models.PricePoint) error
}

// IndicatorAudit records the indicator sets used for scoring.
type IndicatorAudit interface {
	RecordIndicators(ctx context.Context, snaps []models.IndicatorSnapshot) error
}

// SignalStore persists signals and their feedback.
type SignalStore interface {
	CreateSignal(ctx context.Context, s models.Signal) (string, error)
	GetSignal(ctx context.Context, id string) (models.Signal, error)
	// FindActiveBySymbol returns the newest active signal for symbol created at or after since.
	FindActiveBySymbol(ctx context.Context, symbol string, since time.Time) (models.Signal, error)
	ListSignals(ctx context.Context, f models.SignalFilter) ([]models.Signal, error)
	// RecordFeedback moves an active signal to outcome. It returns ErrSignalNotFound or
	// ErrSignalClosed without mutating anything when the transition is not allowed.
	RecordFeedback(ctx context.Context, id string, outcome models.SignalStatus, comment string, at time.Time) (models.Signal, error)
	GetFeedbackStats(ctx context.Context, lookbackDays int) (models.FeedbackStats, error)
}

// CandidateCache is the single-entry, time-boxed cache of the discovered universe.
type CandidateCache interface {
	// Get returns the cached universe and true only while it is fresh.
	Get(ctx context.Context) ([]models.Candidate, bool, error)
	Put(ctx context.Context, candidates []models.Candidate) error
}

// WeightStore persists the current weight snapshot across restarts.
type WeightStore interface {
	LoadWeights(ctx context.Context) (models.WeightVector, bool, error)
	SaveWeights(ctx context.Context, w models.WeightVector) error
}

// DiscoveryStrategy fetches raw market records from one discovery source.
type DiscoveryStrategy interface {
	Source() models.DiscoverySource
	Fetch(ctx context.Context) ([]models.MarketRecord, error)
}

// MarketStream streams live price points.
type MarketStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.PricePoint, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Notifier is the sink for emitted signals.
type Notifier interface {
	Notify(ctx context.Context, ev models.SignalEvent) error
	Close() error
}

type Metrics interface {
	RecordCandidates(source string, n int)
	RecordAnalysis(ok bool)
	RecordScore(symbol string, score float64)
	RecordSignal(status string)
	RecordWeights(w models.WeightVector)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
