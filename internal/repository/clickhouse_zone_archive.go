package repository

import (
	"context"
	"fmt"

	"ZonePulse/internal/domain/models"
	domain "ZonePulse/internal/domain/repository"
	"ZonePulse/pkg/clickhouse"
)

// zoneArchiveSchema creates the append-only zone archive. ReplacingMergeTree
// collapses re-inserts of the same zone key on background merges.
var zoneArchiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS zones (
		symbol          LowCardinality(String),
		timeframe       LowCardinality(String),
		zone_type       LowCardinality(String),
		state           LowCardinality(String),
		price_low       Float64,
		price_high      Float64,
		formation_index Int64,
		formation_time  DateTime64(3, 'UTC'),
		touches         UInt16,
		liquidity_sweep UInt8,
		score           Float64,
		detected_at     DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(detected_at)
	PARTITION BY toYYYYMM(formation_time)
	ORDER BY (symbol, timeframe, zone_type, formation_index)`,
}

// ClickHouseZoneArchive persists confirmed zones for offline analysis.
// It sits behind the Kafka zones topic, not on the hot detection path.
type ClickHouseZoneArchive struct {
	client *clickhouse.Client
}

var _ domain.ZoneArchive = (*ClickHouseZoneArchive)(nil)

func NewClickHouseZoneArchive(ctx context.Context, client *clickhouse.Client) (*ClickHouseZoneArchive, error) {
	if err := client.InitSchema(ctx, zoneArchiveSchema); err != nil {
		return nil, fmt.Errorf("init zone archive schema: %w", err)
	}
	return &ClickHouseZoneArchive{client: client}, nil
}

func (a *ClickHouseZoneArchive) Store(ctx context.Context, e *models.ZoneEvent) error {
	z := e.Zone
	sweep := uint8(0)
	if z.LiquiditySweep {
		sweep = 1
	}
	_, err := a.client.DB().ExecContext(ctx,
		`INSERT INTO zones (
			symbol, timeframe, zone_type, state, price_low, price_high,
			formation_index, formation_time, touches, liquidity_sweep,
			score, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		z.Symbol, z.Timeframe, string(z.Type), string(z.State),
		z.PriceLow, z.PriceHigh, z.FormationIndex, z.FormationTime,
		uint16(z.Touches), sweep, z.Score, e.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert zone %s: %w", z.Key(), err)
	}
	return nil
}

func (a *ClickHouseZoneArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *ClickHouseZoneArchive) Close() error {
	return a.client.Close()
}
