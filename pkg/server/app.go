package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/usecase"
	xhttp "CoinRadar/pkg/http"
	pkgkafka "CoinRadar/pkg/kafka"
	applogger "CoinRadar/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Service is a background component with an explicit lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	cycle      *usecase.ScanCycle
	retrain    *usecase.RetrainJob
	collector  *usecase.PriceCollector
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	background []Service
	httpServer *xhttp.Server
	shutdownIn time.Duration
}

// New creates a new App. collector and consumer may be nil when their features are disabled.
func New(
	l *applogger.Logger,
	cycle *usecase.ScanCycle,
	retrain *usecase.RetrainJob,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	background []Service,
	httpServer *xhttp.Server,
	shutdownTimeout time.Duration,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &App{
		log:        l,
		cycle:      cycle,
		retrain:    retrain,
		collector:  collector,
		consumer:   consumer,
		handlers:   handlers,
		background: background,
		httpServer: httpServer,
		shutdownIn: shutdownTimeout,
	}
}

// Run starts every component and blocks until SIGINT/SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.restoreWeights(ctx)

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}

	for i, svc := range a.background {
		if err := svc.Start(ctx); err != nil {
			_ = a.stopBackground(ctx, a.background[:i])
			if a.consumer != nil {
				_ = a.consumer.Stop(ctx)
			}
			return fmt.Errorf("start background service: %w", err)
		}
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			// the scan cycle still records prices without the live stream
			a.log.Warn("price collector not started", applogger.Error(err))
			a.collector = nil
		} else {
			a.log.Info("price collector started")
		}
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.cycle.Run(gctx) })
	g.Go(func() error { return a.retrain.Run(gctx) })

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownIn)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

// ScanOnce runs a single discovery and analysis cycle.
func (a *App) ScanOnce(ctx context.Context, emit bool) (usecase.CycleReport, error) {
	a.restoreWeights(ctx)
	return a.cycle.RunOnce(ctx, emit)
}

// RetrainReport is the outcome of a manual retrain.
type RetrainReport struct {
	Weights models.WeightVector `json:"weights"`
	Changed bool                `json:"changed"`
}

// RetrainOnce restores the persisted weights and runs one retrain pass.
func (a *App) RetrainOnce(ctx context.Context) (RetrainReport, error) {
	a.restoreWeights(ctx)
	w, changed, err := a.retrain.RunOnce(ctx)
	return RetrainReport{Weights: w, Changed: changed}, err
}

func (a *App) restoreWeights(ctx context.Context) {
	if _, err := a.retrain.Restore(ctx); err != nil {
		a.log.Warn("weights restore failed, using current vector", applogger.Error(err))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	var errs []error

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer stop: %w", err))
		}
	}
	if err := a.stopBackground(ctx, a.background); err != nil {
		errs = append(errs, err)
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

// stopBackground stops services in reverse start order.
func (a *App) stopBackground(ctx context.Context, svcs []Service) error {
	var errs []error
	for i := len(svcs) - 1; i >= 0; i-- {
		if err := svcs[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
