package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"

	"github.com/google/uuid"
)

// MemorySignalStore is an in-process SignalStore.
type MemorySignalStore struct {
	mu      sync.RWMutex
	signals map[string]models.Signal
	now     func() time.Time
}

func NewMemorySignalStore(now func() time.Time) *MemorySignalStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySignalStore{signals: make(map[string]models.Signal), now: now}
}

func (s *MemorySignalStore) CreateSignal(_ context.Context, sig models.Signal) (string, error) {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.Status == "" {
		sig.Status = models.StatusActive
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now()
	}
	sig.Analysis = append([]string(nil), sig.Analysis...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.ID] = sig
	return sig.ID, nil
}

func (s *MemorySignalStore) GetSignal(_ context.Context, id string) (models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return models.Signal{}, models.ErrSignalNotFound
	}
	return sig, nil
}

func (s *MemorySignalStore) FindActiveBySymbol(_ context.Context, symbol string, since time.Time) (models.Signal, error) {
	symbol = strings.ToUpper(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var best models.Signal
	found := false
	for _, sig := range s.signals {
		if sig.Symbol != symbol || sig.Status != models.StatusActive || sig.CreatedAt.Before(since) {
			continue
		}
		if !found || sig.CreatedAt.After(best.CreatedAt) {
			best, found = sig, true
		}
	}
	if !found {
		return models.Signal{}, models.ErrSignalNotFound
	}
	return best, nil
}

// ListSignals returns matches newest first.
func (s *MemorySignalStore) ListSignals(_ context.Context, f models.SignalFilter) ([]models.Signal, error) {
	symbol := strings.ToUpper(f.Symbol)

	s.mu.RLock()
	out := make([]models.Signal, 0, len(s.signals))
	for _, sig := range s.signals {
		if f.Status != "" && sig.Status != f.Status {
			continue
		}
		if symbol != "" && sig.Symbol != symbol {
			continue
		}
		out = append(out, sig)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemorySignalStore) RecordFeedback(_ context.Context, id string, outcome models.SignalStatus, comment string, at time.Time) (models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return models.Signal{}, models.ErrSignalNotFound
	}
	next, err := sig.Status.Transition(outcome)
	if err != nil {
		return sig, err
	}
	sig.Status = next
	sig.Comment = comment
	sig.FeedbackAt = &at
	s.signals[id] = sig
	return sig, nil
}

func (s *MemorySignalStore) GetFeedbackStats(_ context.Context, lookbackDays int) (models.FeedbackStats, error) {
	days := domrepo.NormalizeLookback(lookbackDays)
	since := s.now().AddDate(0, 0, -days)
	stats := models.NewFeedbackStats(days)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sig := range s.signals {
		if sig.CreatedAt.Before(since) {
			continue
		}
		stats.Add(sig.DiscoverySource, sig.IsNew, sig.Status, 1)
	}
	return stats, nil
}

var _ domrepo.SignalStore = (*MemorySignalStore)(nil)
