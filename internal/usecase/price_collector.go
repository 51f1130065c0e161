package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"CoinRadar/internal/domain/models"
	drepo "CoinRadar/internal/domain/repository"
	mid "CoinRadar/internal/middleware"
	applogger "CoinRadar/pkg/logger"
)

// PriceCollector feeds the live market stream into the sampling pipeline between scan cycles.
type PriceCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.PricePipeline
	metrics drepo.Metrics
	l       *applogger.Logger
	done    chan struct{}
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func NewPriceCollector(stream drepo.MarketStream, pipe *mid.PricePipeline, metrics drepo.Metrics, l *applogger.Logger) *PriceCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &PriceCollector{stream: stream, pipe: pipe, metrics: metrics, l: l}
}

func (c *PriceCollector) IsConnected() bool { return c.stream.IsConnected() }

// Start connects and consumes in the background until ctx ends.
func (c *PriceCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.pipe.Start(ctx)
	c.done = make(chan struct{})
	go c.consume(ctx)
	return nil
}

func (c *PriceCollector) consume(ctx context.Context) {
	defer close(c.done)
	for {
		ptCh, errCh := c.stream.Read(ctx)
		c.drain(ctx, ptCh, errCh)
		if ctx.Err() != nil || c.stopped.Load() {
			return
		}
		c.metrics.RecordError("stream")
		for {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				break
			}
			if ctx.Err() != nil || c.stopped.Load() {
				return
			}
			c.l.Warn("ticker stream reconnect failed", applogger.Error(err))
		}
		if c.stopped.Load() {
			_ = c.stream.Close()
			return
		}
	}
}

// drain returns when the current connection ends.
func (c *PriceCollector) drain(ctx context.Context, ptCh <-chan models.PricePoint, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.l.Warn("ticker stream error", applogger.Error(err))
			}
			return
		case p, ok := <-ptCh:
			if !ok {
				return
			}
			accepted, err := c.pipe.Process(ctx, p)
			if err != nil {
				c.l.Debug("price point not stored", applogger.String("symbol", p.Symbol), applogger.Error(err))
			}
			if accepted {
				c.metrics.RecordLastPrice(p.Symbol, p.Price)
			}
		}
	}
}

// Shutdown closes the stream, waits for the consumer and flushes the pipeline.
func (c *PriceCollector) Shutdown(ctx context.Context) error {
	c.stopped.Store(true)
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}
	c.pipe.Stop()
	return err
}
