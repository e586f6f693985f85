//go:build wireinject
// +build wireinject

package di

import (
	"ZonePulse/pkg/config"
	"ZonePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideClickHouseClient,

		// Repositories
		ProvideMarketFeed,
		ProvideDedupStore,
		ProvideZonesKafkaHandler,
		ProvideDispatchers,

		// Use cases
		ProvideZoneNotifier,
		ProvideSessionManager,
		ProvideHistoricalScan,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
