package metrics

import (
	"strconv"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candidates *prometheus.CounterVec
	analyses   *prometheus.CounterVec
	scores     prometheus.Histogram
	lastScore  *prometheus.GaugeVec
	signals    *prometheus.CounterVec
	weights    *prometheus.GaugeVec
	weightsVer prometheus.Gauge
	lastPrice  *prometheus.GaugeVec
	errorsTot  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers the collectors on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinradar_candidates_discovered_total",
			Help: "Candidates returned per discovery source",
		}, []string{"source"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinradar_analyses_total",
			Help: "Candidate analyses by result",
		}, []string{"result"}),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinradar_score",
			Help:    "Distribution of final scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		lastScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coinradar_last_score",
			Help: "Last final score per symbol",
		}, []string{"symbol"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinradar_signals_total",
			Help: "Signal lifecycle events by status",
		}, []string{"status"}),
		weights: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coinradar_weight",
			Help: "Current scoring weight per factor",
		}, []string{"factor"}),
		weightsVer: f.NewGauge(prometheus.GaugeOpts{
			Name: "coinradar_weights_version",
			Help: "Version of the active weight snapshot",
		}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coinradar_last_price",
			Help: "Last recorded price for a symbol",
		}, []string{"symbol"}),
		errorsTot: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coinradar_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinradar_operation_duration_seconds",
			Help:    "Duration of pipeline operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordCandidates(source string, n int) {
	r.candidates.WithLabelValues(source).Add(float64(n))
}

func (r *Recorder) RecordAnalysis(ok bool) {
	r.analyses.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (r *Recorder) RecordScore(symbol string, score float64) {
	r.scores.Observe(score)
	r.lastScore.WithLabelValues(symbol).Set(score)
}

func (r *Recorder) RecordSignal(status string) {
	r.signals.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordWeights(w models.WeightVector) {
	r.weights.WithLabelValues("volume_ratio").Set(w.VolumeRatio)
	r.weights.WithLabelValues("price_momentum").Set(w.PriceMomentum)
	r.weights.WithLabelValues("market_cap").Set(w.MarketCap)
	r.weights.WithLabelValues("technical_indicators").Set(w.TechnicalIndicators)
	r.weights.WithLabelValues("new_coin_bonus").Set(w.NewCoinBonus)
	r.weightsVer.Set(float64(w.Version))
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTot.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordCandidates(string, int)      {}
func (Nop) RecordAnalysis(bool)               {}
func (Nop) RecordScore(string, float64)       {}
func (Nop) RecordSignal(string)               {}
func (Nop) RecordWeights(models.WeightVector) {}
func (Nop) RecordLastPrice(string, float64)   {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}

var (
	_ domrepo.Metrics = (*Recorder)(nil)
	_ domrepo.Metrics = Nop{}
)
