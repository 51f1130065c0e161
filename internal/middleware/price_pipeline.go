package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	"CoinRadar/pkg/metrics"
)

// Sink is the minimal writer the pipeline flushes into.
type Sink interface {
	AppendPricePoints(ctx context.Context, points []models.PricePoint) error
}

// PricePipeline sits between the live ticker stream and the price store.
// It validates points, samples each symbol at most once per interval and
// writes accepted points in batches, retrying a failed batch with backoff.
type PricePipeline struct {
	sink       Sink
	metrics    domrepo.Metrics
	interval   time.Duration
	batchSize  int
	flushEvery time.Duration
	maxBuffer  int

	mu       sync.Mutex
	lastSeen map[string]time.Time
	buf      []models.PricePoint
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type PipelineOption func(*PricePipeline)

// WithSampleInterval sets the minimum spacing between accepted points of one symbol.
func WithSampleInterval(d time.Duration) PipelineOption {
	return func(p *PricePipeline) { p.interval = d }
}

// WithBatch sets the flush size and the periodic flush interval.
func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *PricePipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// WithMaxBuffer caps buffered points while the sink is failing; the oldest are dropped.
func WithMaxBuffer(n int) PipelineOption {
	return func(p *PricePipeline) {
		if n > 0 {
			p.maxBuffer = n
		}
	}
}

func NewPricePipeline(sink Sink, m domrepo.Metrics, opts ...PipelineOption) *PricePipeline {
	p := &PricePipeline{
		sink:       sink,
		metrics:    m,
		interval:   5 * time.Minute,
		batchSize:  500,
		flushEvery: 10 * time.Second,
		maxBuffer:  10000,
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop{}
	}
	return p
}

// Start launches the background flusher.
func (p *PricePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.flushEvery)
		defer ticker.Stop()
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-stop:
				p.finalFlush(ctx)
				return
			case <-ctx.Done():
				p.finalFlush(ctx)
				return
			case <-ticker.C:
				if err := p.Flush(ctx); err != nil {
					backoff = min(backoff*2, 2*time.Second)
					sleepCtx(ctx, backoff)
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// finalFlush runs detached from the cancelled run context.
func (p *PricePipeline) finalFlush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = p.Flush(fctx)
}

// Stop stops the flusher after a final flush.
func (p *PricePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()
	close(stop)
	<-done
}

// Process validates and samples one point. Throttled points are dropped silently.
// It reports whether the point was accepted.
func (p *PricePipeline) Process(ctx context.Context, pt models.PricePoint) (bool, error) {
	if err := validatePoint(pt); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return false, err
	}
	p.mu.Lock()
	if !p.allow(pt.Symbol, pt.CapturedAt) {
		p.mu.Unlock()
		return false, nil
	}
	p.buf = append(p.buf, pt)
	if over := len(p.buf) - p.maxBuffer; over > 0 {
		p.buf = append(p.buf[:0:0], p.buf[over:]...)
		p.metrics.RecordError("pipeline_buffer_drop")
	}
	full := len(p.buf) >= p.batchSize
	p.mu.Unlock()

	if full {
		if err := p.Flush(ctx); err != nil {
			return true, fmt.Errorf("pipeline flush: %w", err)
		}
	}
	return true, nil
}

// Flush writes buffered points. On failure they are put back in front of the buffer.
func (p *PricePipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := p.sink.AppendPricePoints(ctx, batch); err != nil {
		p.metrics.RecordError("pipeline_flush")
		p.mu.Lock()
		p.buf = append(batch, p.buf...)
		p.mu.Unlock()
		return err
	}
	p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
	return nil
}

// Buffered returns the number of points waiting for a flush.
func (p *PricePipeline) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

var errInvalidPoint = errors.New("invalid price point")

func validatePoint(pt models.PricePoint) error {
	switch {
	case pt.Symbol == "":
		return fmt.Errorf("%w: symbol empty", errInvalidPoint)
	case pt.CapturedAt.IsZero():
		return fmt.Errorf("%w: timestamp missing", errInvalidPoint)
	case pt.Price <= 0 || math.IsNaN(pt.Price) || math.IsInf(pt.Price, 0):
		return fmt.Errorf("%w: price %v", errInvalidPoint, pt.Price)
	case pt.Volume < 0:
		return fmt.Errorf("%w: negative volume", errInvalidPoint)
	}
	return nil
}

// allow must be called with p.mu held. Spacing is measured on event time.
func (p *PricePipeline) allow(symbol string, at time.Time) bool {
	if p.interval <= 0 {
		return true
	}
	last, ok := p.lastSeen[symbol]
	if ok && at.Sub(last) < p.interval {
		return false
	}
	p.lastSeen[symbol] = at
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
