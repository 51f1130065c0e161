package di

import (
	"context"
	"fmt"
	"time"

	"CoinRadar/internal/domain/models"
	domrepo "CoinRadar/internal/domain/repository"
	domsvc "CoinRadar/internal/domain/service"
	"CoinRadar/internal/handler/api"
	mid "CoinRadar/internal/middleware"
	internalrepo "CoinRadar/internal/repository"
	"CoinRadar/internal/service/coingecko"
	"CoinRadar/internal/service/ratelimit"
	"CoinRadar/internal/service/tickerstream"
	"CoinRadar/internal/services/discovery"
	"CoinRadar/internal/services/scoring"
	"CoinRadar/internal/services/weights"
	"CoinRadar/internal/usecase"
	"CoinRadar/pkg/cache"
	pkgch "CoinRadar/pkg/clickhouse"
	"CoinRadar/pkg/config"
	xhttp "CoinRadar/pkg/http"
	pkgkafka "CoinRadar/pkg/kafka"
	applogger "CoinRadar/pkg/logger"
	pkgmetrics "CoinRadar/pkg/metrics"
	"CoinRadar/pkg/postgres"
	"CoinRadar/pkg/queue"
	"CoinRadar/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	initTimeout = 10 * time.Second

	// feedbackQueueTopic labels feedback handled from the Redis queue.
	feedbackQueueTopic = "redis:feedback"
)

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() domrepo.Metrics {
	return pkgmetrics.New(prometheus.DefaultRegisterer)
}

// ProvideCache returns Redis when enabled, otherwise an in-process cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 5*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close failed", applogger.Error(err))
		}
	}, nil
}

// ProvideClickHouseClient connects and creates the schema. It returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, func() { _ = client.Close() }, nil
}

func ProvidePriceStore(ch *pkgch.Client, l *applogger.Logger) domrepo.PriceStore {
	if ch == nil {
		return internalrepo.NewMemoryPriceStore()
	}
	return internalrepo.NewCHPriceStore(ch, l)
}

// ProvideIndicatorAudit returns the price store's audit side when it has one.
func ProvideIndicatorAudit(prices domrepo.PriceStore) domrepo.IndicatorAudit {
	if a, ok := prices.(domrepo.IndicatorAudit); ok {
		return a
	}
	return nil
}

// ProvidePostgresPool connects and migrates. It returns nil when Postgres is disabled.
func ProvidePostgresPool(cfg *config.Config, l *applogger.Logger) (*postgres.Pool, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
	}
	l.Info("postgres ready", applogger.Bool("migrated", cfg.Postgres.Migrate))
	return pool, pool.Close, nil
}

func ProvideSignalStore(pool *postgres.Pool) domrepo.SignalStore {
	if pool == nil {
		return internalrepo.NewMemorySignalStore(nil)
	}
	return internalrepo.NewPGSignalStore(pool)
}

// ProvideKafkaProducer returns nil when Kafka is disabled. The notifier owns its lifetime.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// SignalQueue publishes signal events on a Redis list. Its RedisQueue is nil when the queue is disabled.
type SignalQueue struct{ *queue.RedisQueue }

// FeedbackQueue consumes feedback from a Redis list. Its RedisQueue is nil when the queue is disabled.
type FeedbackQueue struct{ *queue.RedisQueue }

// redisClient returns the client behind the shared cache, or nil for the in-process cache.
func redisClient(store cache.Service) *redis.Client {
	if rc, ok := store.(*cache.RedisCache); ok {
		return rc.Client()
	}
	return nil
}

func ProvideSignalQueue(cfg *config.Config, store cache.Service, l *applogger.Logger) SignalQueue {
	client := redisClient(store)
	if !cfg.Redis.Queue.Enabled || client == nil {
		return SignalQueue{}
	}
	return SignalQueue{queue.NewRedisQueue(l, client, queue.WithKeyPrefix(cfg.Redis.Queue.SignalsKey))}
}

func ProvideFeedbackQueue(cfg *config.Config, store cache.Service, lifecycle *usecase.SignalLifecycle, m domrepo.Metrics, l *applogger.Logger) FeedbackQueue {
	client := redisClient(store)
	if !cfg.Redis.Queue.Enabled || client == nil {
		return FeedbackQueue{}
	}
	q := queue.NewRedisQueue(l, client,
		queue.WithKeyPrefix(cfg.Redis.Queue.FeedbackKey),
		queue.WithWorkers(cfg.Redis.Queue.Workers),
		queue.WithRetry(cfg.Redis.Queue.RetryLimit, cfg.Redis.Queue.RetryDelay),
	)
	q.Register(usecase.NewFeedbackJob(usecase.NewFeedbackHandler(feedbackQueueTopic, lifecycle, m, l)))
	return FeedbackQueue{q}
}

// ProvideBackground collects the optional queues the App starts and stops.
func ProvideBackground(sq SignalQueue, fq FeedbackQueue) []server.Service {
	var out []server.Service
	if sq.RedisQueue != nil {
		out = append(out, sq.RedisQueue)
	}
	if fq.RedisQueue != nil {
		out = append(out, fq.RedisQueue)
	}
	return out
}

// ProvideNotifier prefers Kafka, then the Redis queue, then the log.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer, sq SignalQueue, l *applogger.Logger) (domrepo.Notifier, func()) {
	var n domrepo.Notifier
	switch {
	case producer != nil:
		n = internalrepo.NewKafkaNotifier(producer, cfg.Kafka.SignalsTopic)
	case sq.RedisQueue != nil:
		n = internalrepo.NewQueueNotifier(sq.RedisQueue)
	default:
		n = internalrepo.NewLogNotifier(l, 100)
	}
	return n, func() {
		if err := n.Close(); err != nil {
			l.Warn("notifier close failed", applogger.Error(err))
		}
	}
}

func ProvideCoinGecko(cfg *config.Config, l *applogger.Logger) *coingecko.Client {
	return coingecko.New(
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithAPIKey(cfg.CoinGecko.APIKey, cfg.CoinGecko.APIKeyHeader),
		coingecko.WithTimeout(cfg.CoinGecko.Timeout),
		coingecko.WithRetry(cfg.CoinGecko.RetryAttempts, cfg.CoinGecko.RetryBackoff),
		coingecko.WithLimiter(ratelimit.New(cfg.CoinGecko.RPS, cfg.CoinGecko.Burst)),
		coingecko.WithLogger(l),
	)
}

// ProvideDiscoverer builds the three discovery strategies over CoinGecko.
func ProvideDiscoverer(cfg *config.Config, src *coingecko.Client, m domrepo.Metrics, l *applogger.Logger) domsvc.Discoverer {
	exclude := discovery.NewExclusion(cfg.Radar.Exclude...)
	heuristic := discovery.DefaultNewCoinHeuristic()
	return discovery.NewAggregator([]domrepo.DiscoveryStrategy{
		discovery.NewTopMarketCap(src, cfg.Radar.TopMarketCapLimit, exclude),
		discovery.NewVolumeScreener(src, cfg.Radar.ScreenerPerPage, cfg.Radar.ScreenerPages, discovery.DefaultEligibility(), exclude),
		discovery.NewNewCoinSearch(src, heuristic),
	},
		discovery.WithNewCoinHeuristic(heuristic),
		discovery.WithMetrics(m),
		discovery.WithLogger(l),
	)
}

func ProvideCandidateCache(cfg *config.Config, store cache.Service) domrepo.CandidateCache {
	return internalrepo.NewCandidateCache(store, cfg.Radar.CandidateTTL, nil)
}

func ProvideWeightStore(store cache.Service) domrepo.WeightStore {
	return internalrepo.NewCacheWeightStore(store)
}

func ProvideWeightModel(cfg *config.Config) *weights.Model {
	return weights.New(weights.Config{
		Initial:   cfg.Weights.Initial,
		Bounds:    models.WeightBounds{Min: cfg.Weights.Min, Max: cfg.Weights.Max},
		Step:      cfg.Weights.Step,
		Margin:    cfg.Weights.Margin,
		MinSample: cfg.Weights.MinSample,
	})
}

func ProvideScorer(cfg *config.Config) domsvc.Scorer {
	return scoring.New(scoring.WithNewCoinBonusPoints(cfg.Radar.NewCoinBonusPoints))
}

func ProvideAnalysisScheduler(
	cfg *config.Config,
	prices domrepo.PriceStore,
	scorer domsvc.Scorer,
	model *weights.Model,
	audit domrepo.IndicatorAudit,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisScheduler {
	return usecase.NewAnalysisScheduler(prices, scorer, model,
		usecase.WithMaxInFlight(cfg.Radar.MaxInFlight),
		usecase.WithLookbackDays(cfg.Radar.LookbackDays),
		usecase.WithIndicatorAudit(audit),
		usecase.WithSchedulerMetrics(m),
		usecase.WithSchedulerLogger(l),
	)
}

func ProvideSignalLifecycle(cfg *config.Config, store domrepo.SignalStore, n domrepo.Notifier, m domrepo.Metrics, l *applogger.Logger) *usecase.SignalLifecycle {
	return usecase.NewSignalLifecycle(store, n,
		usecase.WithDedupWindow(cfg.Radar.DedupWindow),
		usecase.WithLifecycleMetrics(m),
		usecase.WithLifecycleLogger(l),
	)
}

func ProvideScanCycle(
	cfg *config.Config,
	d domsvc.Discoverer,
	candidates domrepo.CandidateCache,
	prices domrepo.PriceStore,
	scheduler *usecase.AnalysisScheduler,
	lifecycle *usecase.SignalLifecycle,
	store cache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.ScanCycle {
	return usecase.NewScanCycle(d, candidates, prices, scheduler, lifecycle,
		usecase.WithThresholds(cfg.Radar.MinScore, cfg.Radar.SignalThreshold),
		usecase.WithLimits(cfg.Radar.TopPredictions, cfg.Radar.MaxSignalsPerCycle),
		usecase.WithCadence(cfg.Radar.Interval, cfg.Radar.RetryAfter),
		usecase.WithLocker(store, cfg.Radar.Interval),
		usecase.WithCycleMetrics(m),
		usecase.WithCycleLogger(l),
	)
}

func ProvideRetrainJob(cfg *config.Config, model *weights.Model, signals domrepo.SignalStore, store domrepo.WeightStore, m domrepo.Metrics, l *applogger.Logger) *usecase.RetrainJob {
	return usecase.NewRetrainJob(model, signals, store,
		usecase.WithRetrainEvery(cfg.Weights.RetrainEvery),
		usecase.WithRetrainLookback(cfg.Radar.LookbackDays),
		usecase.WithRetrainMetrics(m),
		usecase.WithRetrainLogger(l),
	)
}

// ProvidePriceCollector wires the live ticker stream into the price store. It returns nil when streaming is disabled.
func ProvidePriceCollector(cfg *config.Config, prices domrepo.PriceStore, m domrepo.Metrics, l *applogger.Logger) *usecase.PriceCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	stream := tickerstream.New(
		tickerstream.WithURL(cfg.Stream.URL),
		tickerstream.WithQuote(cfg.Stream.Quote),
		tickerstream.WithSymbols(cfg.Stream.Symbols...),
		tickerstream.WithReconnectDelay(cfg.Stream.ReconnectDelay),
		tickerstream.WithPingInterval(cfg.Stream.PingInterval),
		tickerstream.WithLogger(l),
	)
	pipe := mid.NewPricePipeline(prices, m,
		mid.WithSampleInterval(cfg.Stream.SampleInterval),
		mid.WithBatch(cfg.Stream.BatchSize, cfg.Stream.FlushInterval),
	)
	return usecase.NewPriceCollector(stream, pipe, m, l)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideMessageHandlers(cfg *config.Config, lifecycle *usecase.SignalLifecycle, prices domrepo.PriceStore, m domrepo.Metrics, l *applogger.Logger) []pkgkafka.MessageHandler {
	handlers := []pkgkafka.MessageHandler{
		usecase.NewFeedbackHandler(cfg.Kafka.FeedbackTopic, lifecycle, m, l),
	}
	if cfg.Kafka.IngestPrices {
		handlers = append(handlers, usecase.NewPriceIngestHandler(cfg.Kafka.PricesTopic, prices, m))
	}
	return handlers
}

func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.ScanCycle,
	lifecycle *usecase.SignalLifecycle,
	model *weights.Model,
	prices domrepo.PriceStore,
) *xhttp.Server {
	h := api.NewRadarEchoHandler(l, cycle, lifecycle, model,
		usecase.NewMarketHistory(prices),
		ratelimit.New(cfg.Server.FeedbackRPS, cfg.Server.FeedbackBurst),
	)
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.AllowOrigins...),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
	)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.ScanCycle,
	retrain *usecase.RetrainJob,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	background []server.Service,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(l, cycle, retrain, collector, consumer, handlers, background, httpServer, cfg.Server.ShutdownTimeout)
}
