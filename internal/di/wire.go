//go:build wireinject
// +build wireinject

package di

import (
	"CoinRadar/pkg/config"
	"CoinRadar/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// infrastructure
		ProvideCache,
		ProvideClickHouseClient,
		ProvidePostgresPool,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// repositories
		ProvidePriceStore,
		ProvideIndicatorAudit,
		ProvideSignalStore,
		ProvideSignalQueue,
		ProvideNotifier,
		ProvideCandidateCache,
		ProvideWeightStore,

		// services
		ProvideCoinGecko,
		ProvideDiscoverer,
		ProvideWeightModel,
		ProvideScorer,

		// use cases
		ProvideAnalysisScheduler,
		ProvideSignalLifecycle,
		ProvideScanCycle,
		ProvideRetrainJob,
		ProvidePriceCollector,
		ProvideMessageHandlers,
		ProvideFeedbackQueue,
		ProvideBackground,

		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
