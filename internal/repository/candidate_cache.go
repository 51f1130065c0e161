package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	"CoinRadar/pkg/cache"
)

const (
	candidatesKey = "candidates:universe"
	weightsKey    = "weights:current"

	DefaultCandidateTTL = 10 * time.Minute
	candidateKeyExpiry  = 24 * time.Hour
)

type cachedUniverse struct {
	StoredAt   time.Time          `json:"stored_at"`
	Candidates []models.Candidate `json:"candidates"`
}

// CandidateCache keeps the last discovered universe under a single key.
// Freshness is judged against stored_at, so a stale entry is still readable
// by the cache backend but reported as a miss.
type CandidateCache struct {
	store cache.Service
	ttl   time.Duration
	now   func() time.Time
}

func NewCandidateCache(store cache.Service, ttl time.Duration, now func() time.Time) *CandidateCache {
	if ttl <= 0 {
		ttl = DefaultCandidateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CandidateCache{store: store, ttl: ttl, now: now}
}

func (c *CandidateCache) Get(ctx context.Context) ([]models.Candidate, bool, error) {
	var entry cachedUniverse
	if err := c.store.Get(ctx, candidatesKey, &entry); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read candidate cache: %w", err)
	}
	if c.now().Sub(entry.StoredAt) >= c.ttl {
		return nil, false, nil
	}
	return entry.Candidates, true, nil
}

func (c *CandidateCache) Put(ctx context.Context, candidates []models.Candidate) error {
	entry := cachedUniverse{StoredAt: c.now(), Candidates: candidates}
	if err := c.store.Set(ctx, candidatesKey, entry, candidateKeyExpiry); err != nil {
		return fmt.Errorf("write candidate cache: %w", err)
	}
	return nil
}

// CacheWeightStore persists the weight snapshot in the cache backend without expiry.
type CacheWeightStore struct {
	store cache.Service
}

func NewCacheWeightStore(store cache.Service) *CacheWeightStore {
	return &CacheWeightStore{store: store}
}

func (s *CacheWeightStore) LoadWeights(ctx context.Context) (models.WeightVector, bool, error) {
	var w models.WeightVector
	if err := s.store.Get(ctx, weightsKey, &w); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.WeightVector{}, false, nil
		}
		return models.WeightVector{}, false, fmt.Errorf("load weights: %w", err)
	}
	return w, true, nil
}

func (s *CacheWeightStore) SaveWeights(ctx context.Context, w models.WeightVector) error {
	if err := s.store.Set(ctx, weightsKey, w, 0); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	return nil
}

var (
	_ domrepo.CandidateCache = (*CandidateCache)(nil)
	_ domrepo.WeightStore    = (*CacheWeightStore)(nil)
)
