package di

import (
	"context"
	"fmt"
	"time"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/repository"
	"ZonePulse/internal/handler/api"
	internalrepo "ZonePulse/internal/repository"
	"ZonePulse/internal/service/binance"
	"ZonePulse/internal/service/ratelimit"
	"ZonePulse/internal/service/telegram"
	"ZonePulse/internal/session"
	"ZonePulse/internal/usecase"
	"ZonePulse/internal/zone"
	pkgch "ZonePulse/pkg/clickhouse"
	"ZonePulse/pkg/config"
	xhttp "ZonePulse/pkg/http"
	pkgkafka "ZonePulse/pkg/kafka"
	"ZonePulse/pkg/logger"
	"ZonePulse/pkg/metrics"
	"ZonePulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the shared outbound HTTP client.
func ProvideHTTPClient() *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(15 * time.Second))
}

// ProvideMarketFeed creates the Binance market feed.
func ProvideMarketFeed(cfg *config.Config, httpClient *xhttp.Client, m repository.Metrics) repository.MarketFeed {
	return binance.New(cfg.Feed.RestURL, cfg.Feed.WebSocketURL, cfg.Feed.PingInterval, httpClient, m)
}

// ProvideDedupStore selects the dedup backend from configuration.
func ProvideDedupStore(cfg *config.Config, log *logger.Logger) (repository.DedupStore, error) {
	switch cfg.Dedup.Mode {
	case "memory":
		return internalrepo.NewMemoryDedup(), nil
	case "file":
		return internalrepo.NewFileDedup(cfg.Dedup.Path, log)
	case "redis":
		return internalrepo.NewRedisDedup(cfg.Dedup.Redis.Addr, cfg.Dedup.Redis.Password, cfg.Dedup.Redis.DB, log)
	default:
		return nil, fmt.Errorf("%w: unknown dedup mode %q", repository.ErrConfiguration, cfg.Dedup.Mode)
	}
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the zones-topic consumer, nil when Kafka
// or ClickHouse archival is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideClickHouseClient creates a ClickHouse client, nil when the
// archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideZonesKafkaHandler creates the archive consumer handler, nil
// when archival is disabled.
func ProvideZonesKafkaHandler(cfg *config.Config, chClient *pkgch.Client, log *logger.Logger) (pkgkafka.MessageHandler, error) {
	if chClient == nil || !cfg.Kafka.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	archive, err := internalrepo.NewClickHouseZoneArchive(ctx, chClient)
	if err != nil {
		return nil, err
	}
	return usecase.NewKafkaZonesHandler(cfg.Kafka.Topic, archive, log), nil
}

// ProvideDispatchers assembles the enabled notification backends.
func ProvideDispatchers(cfg *config.Config, httpClient *xhttp.Client, producer *pkgkafka.Producer) []repository.Dispatcher {
	var out []repository.Dispatcher
	if cfg.Telegram.Enabled {
		out = append(out, telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, httpClient))
	}
	if producer != nil {
		out = append(out, internalrepo.NewKafkaZonePublisher(producer, cfg.Kafka.Topic))
	}
	return out
}

// ProvideZoneNotifier creates the notification fan-out.
func ProvideZoneNotifier(cfg *config.Config, dispatchers []repository.Dispatcher, log *logger.Logger, m repository.Metrics) *usecase.ZoneNotifier {
	limiter := ratelimit.New(cfg.Notify.RateLimit, cfg.Notify.RateWindow)
	return usecase.NewZoneNotifier(dispatchers, limiter, cfg.Notify.ScoreMin, log, m)
}

func buildDetectConfig(cfg *config.Config) detect.Config {
	d := cfg.Detection
	return detect.Config{
		ATRPeriod:            d.ATRPeriod,
		ATRMult:              d.ATRMult,
		BodyMinRatio:         d.BodyMinRatio,
		WickMaxRatio:         d.WickMaxRatio,
		Lookahead:            d.Lookahead,
		ImpulseMinDirCandles: d.ImpulseMinDir,
		ImpulseMinNetMove:    d.ImpulseMinNetMove,
		VolumeMeanWindow:     d.VolumeMeanWindow,
		SweepEnabled:         d.LiquiditySweep.Enabled,
		SweepWickRatio:       d.LiquiditySweep.WickRatio,
		SweepReversalBars:    d.LiquiditySweep.ReversalBars,
		MaxTouches:           d.MaxTouches,
		Weights: detect.Weights{
			Body:    d.Weights.Body,
			Impulse: d.Weights.Impulse,
			Touch:   d.Weights.Touch,
			Volume:  d.Weights.Volume,
			Sweep:   d.Weights.Sweep,
		},
	}
}

func buildZoneConfig(cfg *config.Config) zone.Config {
	d := cfg.Detection
	return zone.Config{
		MergeThreshold: d.ZoneMergeThreshold,
		ExpiryBars:     d.ZoneExpiryBars,
		MaxTouches:     d.MaxTouches,
		Weights:        buildDetectConfig(cfg).Weights,
	}
}

// ProvideSessionManager creates the per-pair session supervisor.
func ProvideSessionManager(
	cfg *config.Config,
	feed repository.MarketFeed,
	dedup repository.DedupStore,
	notifier *usecase.ZoneNotifier,
	log *logger.Logger,
	m repository.Metrics,
) *usecase.SessionManager {
	sessionCfg := session.Config{
		BufferCapacity:   cfg.Session.BufferCapacity,
		PreloadLimit:     cfg.Session.PreloadLimit,
		NotifyOnPreload:  cfg.Session.NotifyOnPreload,
		GapRepreloadBars: cfg.Session.GapRepreload,
		Backoff: session.Backoff{
			Base:   cfg.Session.Reconnect.BaseDelay,
			Max:    cfg.Session.Reconnect.MaxDelay,
			Jitter: cfg.Session.Reconnect.Jitter,
		},
	}
	return usecase.NewSessionManager(sessionCfg, buildDetectConfig(cfg), buildZoneConfig(cfg), feed, dedup, notifier, log, m)
}

// ProvideHistoricalScan creates the one-shot scan usecase.
func ProvideHistoricalScan(cfg *config.Config, feed repository.MarketFeed, log *logger.Logger) *usecase.HistoricalScan {
	return usecase.NewHistoricalScan(buildDetectConfig(cfg), buildZoneConfig(cfg), feed, log)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	sessions *usecase.SessionManager,
	scanner *usecase.HistoricalScan,
	dedup repository.DedupStore,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	zonesKH pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *server.App {
	app := server.New(cfg, log, sessions, dedup, producer, consumer, zonesKH, chClient)
	app.SetHTTPHandler(api.NewZonesEchoHandler(log, sessions, scanner))
	return app
}
