package metrics

import (
	"testing"

	"CoinRadar/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCandidates("volume_screener", 7)
	r.RecordAnalysis(true)
	r.RecordAnalysis(false)
	r.RecordAnalysis(true)
	r.RecordSignal("active")
	r.RecordScore("PEPE", 91)

	w := models.UniformWeights(1)
	w.NewCoinBonus = 1.4
	w.Version = 3
	r.RecordWeights(w)

	assert.Equal(t, 7.0, testutil.ToFloat64(r.candidates.WithLabelValues("volume_screener")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.analyses.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analyses.WithLabelValues("false")))
	assert.Equal(t, 91.0, testutil.ToFloat64(r.lastScore.WithLabelValues("PEPE")))
	assert.Equal(t, 1.4, testutil.ToFloat64(r.weights.WithLabelValues("new_coin_bonus")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.weightsVer))
}

func TestRecordersAreIndependentPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
