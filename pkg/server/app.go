package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "ZonePulse/internal/domain/repository"
	"ZonePulse/internal/usecase"
	pkgch "ZonePulse/pkg/clickhouse"
	"ZonePulse/pkg/config"
	xhttp "ZonePulse/pkg/http"
	pkgkafka "ZonePulse/pkg/kafka"
	applogger "ZonePulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	sessions *usecase.SessionManager
	dedup    domrepo.DedupStore

	producer *pkgkafka.Producer
	consumer *pkgkafka.Consumer
	zonesKH  pkgkafka.MessageHandler
	chClient *pkgch.Client

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	sessions *usecase.SessionManager,
	dedup domrepo.DedupStore,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	zonesKH pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		dedup:    dedup,
		producer: producer,
		consumer: consumer,
		zonesKH:  zonesKH,
		chClient: chClient,
	}
}

// SetHTTPHandler allows DI to inject the HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	timeframes := make([]domrepo.Timeframe, 0, len(a.cfg.Feed.Timeframes))
	for _, tf := range a.cfg.Feed.Timeframes {
		timeframes = append(timeframes, domrepo.Timeframe(tf))
	}
	if err := a.sessions.Start(ctx, a.cfg.Feed.Symbols, timeframes); err != nil {
		return err
	}
	a.log.Info("sessions started",
		applogger.Strings("symbols", a.cfg.Feed.Symbols),
		applogger.Strings("timeframes", a.cfg.Feed.Timeframes))

	if a.consumer != nil && a.zonesKH != nil {
		a.consumer.RegisterHandler(a.zonesKH)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.zonesKH.Topic()))
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestLogger(a.log),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops services in dependency order: sessions first so no new
// zones flow into the dedup store or dispatchers while they close.
func (a *App) shutdown() error {
	a.sessions.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if err := a.dedup.Flush(shutdownCtx); err != nil {
		a.log.Warn("dedup flush error", applogger.Error(err))
	}
	if err := a.dedup.Close(); err != nil {
		a.log.Warn("dedup close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
