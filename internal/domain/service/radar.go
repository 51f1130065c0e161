package service

import (
	"context"

	"CoinRadar/internal/domain/models"
)

// Scorer turns a candidate and its indicators into a score under the given weights.
type Scorer interface {
	Score(c models.Candidate, ind models.IndicatorSet, w models.WeightVector) (models.ScoreResult, error)
}

// WeightSource exposes the current weight snapshot.
type WeightSource interface {
	Snapshot() models.WeightVector
}

// WeightModel is a WeightSource that can be retrained from feedback.
type WeightModel interface {
	WeightSource
	Retrain(stats models.FeedbackStats) (models.WeightVector, error)
	Restore(w models.WeightVector) models.WeightVector
}

// Discoverer produces the deduplicated candidate universe.
type Discoverer interface {
	Discover(ctx context.Context) ([]models.Candidate, error)
}
