package weights

import (
	"fmt"
	"sync/atomic"
	"time"

	"CoinRadar/internal/domain/models"
	domsvc "CoinRadar/internal/domain/service"
)

// Config holds the retrain rule parameters.
type Config struct {
	Initial   float64
	Bounds    models.WeightBounds
	Step      float64
	Margin    float64
	MinSample int
}

// DefaultConfig returns the production retrain parameters.
func DefaultConfig() Config {
	return Config{
		Initial:   1.0,
		Bounds:    models.WeightBounds{Min: 0.5, Max: 2.0},
		Step:      0.1,
		Margin:    0.1,
		MinSample: 10,
	}
}

// Model holds the current weight vector as an immutable, versioned snapshot.
// A single writer (Retrain/Restore) swaps the pointer; readers never see a partial vector.
type Model struct {
	cfg     Config
	current atomic.Pointer[models.WeightVector]
	now     func() time.Time
}

var _ domsvc.WeightModel = (*Model)(nil)

func New(cfg Config) *Model {
	m := &Model{cfg: cfg, now: time.Now}
	w := models.UniformWeights(cfg.Initial).Clamped(cfg.Bounds)
	w.Version = 1
	w.UpdatedAt = m.now()
	m.current.Store(&w)
	return m
}

// Snapshot returns a copy of the current vector.
func (m *Model) Snapshot() models.WeightVector {
	return *m.current.Load()
}

// Restore installs a previously persisted vector, clamped to the configured band.
func (m *Model) Restore(w models.WeightVector) models.WeightVector {
	w = w.Clamped(m.cfg.Bounds)
	if w.Version <= 0 {
		w.Version = 1
	}
	m.current.Store(&w)
	return w
}

// Retrain adjusts the new-coin bonus weight from feedback outcomes.
// It returns ErrInsufficientSample and leaves the vector untouched when there are fewer
// than MinSample terminal signals or no terminal new-coin signals.
func (m *Model) Retrain(stats models.FeedbackStats) (models.WeightVector, error) {
	cur := m.Snapshot()

	terminal := stats.Totals.Terminal()
	if terminal < m.cfg.MinSample {
		return cur, fmt.Errorf("%w: %d terminal signals, need %d", models.ErrInsufficientSample, terminal, m.cfg.MinSample)
	}
	if stats.NewCoin.Terminal() == 0 {
		return cur, fmt.Errorf("%w: no terminal new-coin signals", models.ErrInsufficientSample)
	}

	delta := stats.NewCoin.SuccessRate() - stats.Totals.SuccessRate()
	next := cur
	switch {
	case delta > m.cfg.Margin:
		next.NewCoinBonus = m.cfg.Bounds.Clamp(cur.NewCoinBonus + m.cfg.Step)
	case delta < -m.cfg.Margin:
		next.NewCoinBonus = m.cfg.Bounds.Clamp(cur.NewCoinBonus - m.cfg.Step)
	default:
		return cur, nil
	}
	if next.SameValues(cur) {
		return cur, nil
	}

	next.Version = cur.Version + 1
	next.UpdatedAt = m.now()
	m.current.Store(&next)
	return next, nil
}
