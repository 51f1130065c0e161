package usecase

import (
	"context"
	"testing"
	"time"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/repository"
	"CoinRadar/internal/services/scoring"
	"CoinRadar/internal/services/weights"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeAllBoundedAndOmitsFailures(t *testing.T) {
	cands := candidates(50)
	scores := make(map[string]float64)
	for i, c := range cands {
		scores[c.Symbol] = float64(i % 7)
	}
	for _, i := range []int{3, 11, 19, 27, 35} {
		cands[i].Price = nil
	}

	prices := &slowPrices{delay: 5 * time.Millisecond}
	s := NewAnalysisScheduler(prices, fixedScorer{scores: scores}, weights.New(weights.DefaultConfig()), WithMaxInFlight(10))

	out := s.AnalyzeAll(context.Background(), cands)

	require.Len(t, out, 45)
	assert.LessOrEqual(t, prices.peak.Load(), int32(10))
	assert.Positive(t, prices.peak.Load())
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].FinalScore, out[i].FinalScore)
	}
}

func TestAnalyzeAllRecoversPanics(t *testing.T) {
	cands := candidates(3)
	scorer := fixedScorer{
		scores: map[string]float64{"C00": 10, "C01": 20, "C02": 30},
		panics: map[string]bool{"C01": true},
	}
	s := NewAnalysisScheduler(&slowPrices{}, scorer, weights.New(weights.DefaultConfig()))

	out := s.AnalyzeAll(context.Background(), cands)
	require.Len(t, out, 2)
	assert.Equal(t, "C02", out[0].Symbol)
	assert.Equal(t, "C00", out[1].Symbol)
}

func TestAnalyzeAllTiesKeepInputOrder(t *testing.T) {
	cands := candidates(5)
	scores := map[string]float64{"C00": 50, "C01": 70, "C02": 50, "C03": 70, "C04": 50}
	s := NewAnalysisScheduler(&slowPrices{}, fixedScorer{scores: scores}, weights.New(weights.DefaultConfig()))

	out := s.AnalyzeAll(context.Background(), cands)
	var got []string
	for _, r := range out {
		got = append(got, r.Symbol)
	}
	assert.Equal(t, []string{"C01", "C03", "C00", "C02", "C04"}, got)
}

func TestAnalyzeAllUsesOneWeightsVersionAndAudits(t *testing.T) {
	store := repository.NewMemoryPriceStore()
	model := weights.New(weights.DefaultConfig())
	s := NewAnalysisScheduler(store, scoring.New(), model, WithIndicatorAudit(store))

	out := s.AnalyzeAll(context.Background(), candidates(4))
	require.Len(t, out, 4)
	for _, r := range out {
		assert.Equal(t, model.Snapshot().Version, r.WeightsVersion)
		assert.Equal(t, models.NeutralRSI, r.Indicators.RSI)
	}
	assert.Len(t, store.Snapshots(), 4)
}

func TestAnalyzeAllEmpty(t *testing.T) {
	s := NewAnalysisScheduler(&slowPrices{}, fixedScorer{}, weights.New(weights.DefaultConfig()))
	assert.Empty(t, s.AnalyzeAll(context.Background(), nil))
}

func TestRankKeepsInclusionThreshold(t *testing.T) {
	in := []models.ScoreResult{{Symbol: "A", FinalScore: 90}, {Symbol: "B", FinalScore: 60}, {Symbol: "C", FinalScore: 59.9}}
	out := Rank(in, DefaultInclusionScore)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Symbol)
	assert.Equal(t, "B", out[1].Symbol)
}
