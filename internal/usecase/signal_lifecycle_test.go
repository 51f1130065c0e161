package usecase

import (
	"context"
	"testing"
	"time"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycle(t *testing.T) (*SignalLifecycle, *repository.MemorySignalStore, *recordingNotifier, *clock) {
	t.Helper()
	clk := newClock()
	store := repository.NewMemorySignalStore(clk.Now)
	n := &recordingNotifier{}
	return NewSignalLifecycle(store, n, WithLifecycleClock(clk.Now)), store, n, clk
}

func result(sym string, score float64) models.ScoreResult {
	return models.ScoreResult{
		Symbol:          sym,
		Price:           0.00042,
		FinalScore:      score,
		DiscoverySource: models.SourceNewCoinSearch,
		IsNew:           true,
		BonusApplied:    10,
		Factors:         []models.Factor{{Name: "momentum", Points: 25, Explanation: "strong momentum"}},
	}
}

func TestEmitCreatesActiveSignalAndNotifies(t *testing.T) {
	lc, store, n, _ := newLifecycle(t)
	ctx := context.Background()

	sig, created, err := lc.Emit(ctx, result("PEPE", 82))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, models.StatusActive, sig.Status)
	assert.Equal(t, models.SignalTypeAuto, sig.Type)
	assert.Equal(t, []string{"strong momentum"}, sig.Analysis)

	stored, err := store.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, 82.0, stored.Score)

	evs := n.all()
	require.Len(t, evs, 1)
	assert.Equal(t, "$0.00042000", evs[0].PriceText)
	require.Len(t, evs[0].Actions, 3)
	assert.Equal(t, "success_"+sig.ID+"_PEPE", evs[0].Actions[0].Callback)
}

func TestEmitDeduplicatesWithinWindow(t *testing.T) {
	lc, _, n, clk := newLifecycle(t)
	ctx := context.Background()

	first, created, err := lc.Emit(ctx, result("PEPE", 80))
	require.NoError(t, err)
	require.True(t, created)

	clk.Advance(time.Hour)
	again, created, err := lc.Emit(ctx, result("PEPE", 90))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	clk.Advance(24 * time.Hour)
	later, created, err := lc.Emit(ctx, result("PEPE", 90))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, later.ID)
	assert.Len(t, n.all(), 2)
}

func TestEmitReturnsNotifyErrorAfterStoring(t *testing.T) {
	lc, store, n, _ := newLifecycle(t)
	n.err = errStoreDown

	sig, created, err := lc.Emit(context.Background(), result("BTC", 80))
	require.ErrorIs(t, err, errStoreDown)
	assert.True(t, created)
	_, err = store.GetSignal(context.Background(), sig.ID)
	assert.NoError(t, err)
}

func TestFeedbackTransitionsOnce(t *testing.T) {
	lc, _, _, clk := newLifecycle(t)
	ctx := context.Background()
	sig, _, err := lc.Emit(ctx, result("SOL", 80))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	got, err := lc.RecordFeedback(ctx, sig.ID, "SUCCESS", "nice pump")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.Equal(t, sig.Score, got.Score)
	require.NotNil(t, got.FeedbackAt)
	assert.Equal(t, clk.Now(), *got.FeedbackAt)
	assert.Equal(t, "nice pump", got.Comment)

	_, err = lc.RecordFeedback(ctx, sig.ID, "fail", "")
	assert.ErrorIs(t, err, models.ErrSignalClosed)

	after, err := lc.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, after.Status)
}

func TestFeedbackRejections(t *testing.T) {
	lc, _, _, _ := newLifecycle(t)
	ctx := context.Background()
	sig, _, err := lc.Emit(ctx, result("SOL", 80))
	require.NoError(t, err)

	_, err = lc.RecordFeedback(ctx, "missing", "success", "")
	assert.ErrorIs(t, err, models.ErrSignalNotFound)

	_, err = lc.RecordFeedback(ctx, sig.ID, "moon", "")
	assert.ErrorIs(t, err, models.ErrInvalidOutcome)

	still, err := lc.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, still.Status)
}

func TestHandleCallbackAppliesOutcome(t *testing.T) {
	lc, _, n, _ := newLifecycle(t)
	ctx := context.Background()
	_, _, err := lc.Emit(ctx, result("DOGE", 80))
	require.NoError(t, err)

	partial := n.all()[0].Actions[2].Callback
	got, err := lc.HandleCallback(ctx, partial, "half way")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, got.Status)

	_, err = lc.HandleCallback(ctx, "garbage", "")
	assert.ErrorIs(t, err, models.ErrInvalidCallback)
}

func TestStatsCountOutcomes(t *testing.T) {
	lc, _, _, _ := newLifecycle(t)
	ctx := context.Background()
	a, _, _ := lc.Emit(ctx, result("A", 80))
	_, _, _ = lc.Emit(ctx, result("B", 80))
	_, err := lc.RecordFeedback(ctx, a.ID, "fail", "")
	require.NoError(t, err)

	stats, err := lc.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.LookbackDays)
	assert.Equal(t, 1, stats.Totals.Active)
	assert.Equal(t, 1, stats.Totals.Fail)
	assert.Equal(t, 2, stats.NewCoin.Active+stats.NewCoin.Fail)
}
