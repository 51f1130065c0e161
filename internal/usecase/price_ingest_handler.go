package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	pkgkafka "CoinRadar/pkg/kafka"
)

// PriceIngestHandler consumes externally produced price points and writes them to the price store.
type PriceIngestHandler struct {
	topic   string
	prices  domrepo.PriceStore
	metrics domrepo.Metrics
}

func NewPriceIngestHandler(topic string, prices domrepo.PriceStore, metrics domrepo.Metrics) *PriceIngestHandler {
	return &PriceIngestHandler{topic: topic, prices: prices, metrics: metrics}
}

func (h *PriceIngestHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v, mcap}; t in seconds or milliseconds
func (h *PriceIngestHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
		MCap   float64 `json:"mcap"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode price point: %w", err))
	}
	if m.Symbol == "" || m.T <= 0 || m.C <= 0 {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(fmt.Errorf("invalid price point for %q", m.Symbol))
	}
	at := time.Unix(m.T, 0)
	if m.T > 1e11 { // ms
		at = time.UnixMilli(m.T)
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(at).Seconds())

	start := time.Now()
	err := h.prices.AppendPricePoint(ctx, models.PricePoint{
		Symbol:     strings.ToUpper(m.Symbol),
		Price:      m.C,
		Volume:     m.V,
		MarketCap:  m.MCap,
		CapturedAt: at.UTC(),
	})
	h.metrics.RecordLatency("price_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordLastPrice(strings.ToUpper(m.Symbol), m.C)
	return nil
}

var _ pkgkafka.MessageHandler = (*PriceIngestHandler)(nil)
