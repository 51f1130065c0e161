package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
)

// MemoryPriceStore is an in-process PriceStore and IndicatorAudit, used when ClickHouse is not configured.
type MemoryPriceStore struct {
	mu     sync.RWMutex
	series map[string][]models.PricePoint
	audit  []models.IndicatorSnapshot
	keep   int
	now    func() time.Time
}

// MemoryPriceOption configures MemoryPriceStore.
type MemoryPriceOption func(*MemoryPriceStore)

// WithPriceClock overrides the clock used for lookback windows.
func WithPriceClock(now func() time.Time) MemoryPriceOption {
	return func(s *MemoryPriceStore) { s.now = now }
}

// WithAuditRetention caps the number of retained indicator snapshots.
func WithAuditRetention(n int) MemoryPriceOption {
	return func(s *MemoryPriceStore) { s.keep = n }
}

func NewMemoryPriceStore(opts ...MemoryPriceOption) *MemoryPriceStore {
	s := &MemoryPriceStore{series: make(map[string][]models.PricePoint), keep: 10_000, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryPriceStore) GetHistory(_ context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error) {
	since := s.now().AddDate(0, 0, -domrepo.NormalizeLookback(lookbackDays))

	s.mu.RLock()
	defer s.mu.RUnlock()
	pts := s.series[strings.ToUpper(symbol)]
	i := sort.Search(len(pts), func(i int) bool { return !pts[i].CapturedAt.Before(since) })
	out := make([]models.PricePoint, len(pts)-i)
	copy(out, pts[i:])
	return out, nil
}

func (s *MemoryPriceStore) AppendPricePoint(ctx context.Context, p models.PricePoint) error {
	return s.AppendPricePoints(ctx, []models.PricePoint{p})
}

// AppendPricePoints keeps each series sorted; a point at an existing timestamp replaces it.
func (s *MemoryPriceStore) AppendPricePoints(_ context.Context, points []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if p.Symbol == "" || p.CapturedAt.IsZero() {
			continue
		}
		p.Symbol = strings.ToUpper(p.Symbol)
		pts := s.series[p.Symbol]
		i := sort.Search(len(pts), func(i int) bool { return !pts[i].CapturedAt.Before(p.CapturedAt) })
		switch {
		case i < len(pts) && pts[i].CapturedAt.Equal(p.CapturedAt):
			pts[i] = p
		default:
			pts = append(pts, models.PricePoint{})
			copy(pts[i+1:], pts[i:])
			pts[i] = p
		}
		s.series[p.Symbol] = pts
	}
	return nil
}

func (s *MemoryPriceStore) RecordIndicators(_ context.Context, snaps []models.IndicatorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, snaps...)
	if over := len(s.audit) - s.keep; s.keep > 0 && over > 0 {
		s.audit = append([]models.IndicatorSnapshot(nil), s.audit[over:]...)
	}
	return nil
}

// Snapshots returns the retained indicator audit, oldest first.
func (s *MemoryPriceStore) Snapshots() []models.IndicatorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.IndicatorSnapshot(nil), s.audit...)
}

var (
	_ domrepo.PriceStore     = (*MemoryPriceStore)(nil)
	_ domrepo.IndicatorAudit = (*MemoryPriceStore)(nil)
)
