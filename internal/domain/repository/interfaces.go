package repository

import (
	"context"

	"ZonePulse/internal/domain/models"
)

// MarketFeed supplies candles from an exchange, both historically and live.
type MarketFeed interface {
	// ValidateSymbol confirms the symbol is tradable on the feed.
	// Returns ErrInvalidSymbol for permanently unknown symbols.
	ValidateSymbol(ctx context.Context, symbol string) error
	// FetchHistorical returns up to limit closed candles ordered by open
	// time, oldest first.
	FetchHistorical(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Candle, error)
	// OpenStream creates a kline stream for one symbol/timeframe pair.
	// Each live session owns exactly one stream.
	OpenStream(symbol string, tf Timeframe) KlineStream
}

// KlineStream is a live kline subscription for a single symbol/timeframe.
type KlineStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.KlineEvent, <-chan error)
	Close() error
	IsConnected() bool
}

// DedupStore records zone identities that have already been notified.
// Contains may be called concurrently; Record is serialized by the
// implementation so concurrent workers never corrupt the backing record.
type DedupStore interface {
	Contains(key string) bool
	Record(ctx context.Context, key string) error
	Flush(ctx context.Context) error
	Close() error
}

// Dispatcher receives a snapshot of every newly confirmed zone. Delivery
// failures are the dispatcher's concern; the core never retries them.
type Dispatcher interface {
	Dispatch(ctx context.Context, e *models.ZoneEvent) error
	Name() string
}

// ZoneArchive persists confirmed zones for later analysis.
type ZoneArchive interface {
	Store(ctx context.Context, e *models.ZoneEvent) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordCandle(symbol, timeframe string)
	RecordZone(symbol, timeframe, zoneType string)
	RecordNotification(channel, symbol string)
	RecordError(kind string)
	RecordReconnect(symbol, timeframe string)
	RecordSessionState(symbol, timeframe string, state float64)
	RecordLatency(op string, seconds float64)
}
