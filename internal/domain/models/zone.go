package models

import (
	"fmt"
	"time"
)

// ZoneType classifies an order block as support (bullish) or resistance
// (bearish).
type ZoneType string

const (
	ZoneBullish ZoneType = "bullish"
	ZoneBearish ZoneType = "bearish"
)

// ZoneState tracks the lifecycle of a zone. Merged and expired are terminal.
type ZoneState string

const (
	ZoneActive  ZoneState = "active"
	ZoneMerged  ZoneState = "merged"
	ZoneExpired ZoneState = "expired"
)

// Candidate is a single candle flagged by the scanner as a potential order
// block. Candidates are transient: they are either confirmed into a Zone by
// the impulse validator or discarded permanently.
type Candidate struct {
	Index     int64
	Type      ZoneType
	BodySize  float64
	Formation Candle
}

// Zone is a confirmed order-block price region.
// Invariants: PriceLow < PriceHigh, Touches <= the configured cap,
// Score in [0,1] and recomputed whenever touches or sweep change.
type Zone struct {
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	Type           ZoneType  `json:"type"`
	State          ZoneState `json:"state"`
	PriceLow       float64   `json:"price_low"`
	PriceHigh      float64   `json:"price_high"`
	FormationIndex int64     `json:"formation_index"`
	FormationTime  time.Time `json:"formation_time"`
	Touches        int       `json:"touches"`
	LastTouchIndex int64     `json:"-"`
	LastTouchAt    time.Time `json:"last_touch_at,omitempty"`
	LiquiditySweep bool      `json:"liquidity_sweep"`
	Score          float64   `json:"score"`
	CreatedAt      time.Time `json:"created_at"`

	// Score inputs carried so the score can be recomputed on touch/sweep
	// changes without re-running detection.
	BodyRatio       float64 `json:"-"`
	ImpulseStrength float64 `json:"-"`
	VolumeSpike     float64 `json:"-"`
}

// Key returns the deterministic zone identity used for deduplication:
// "{symbol}:{timeframe}:{type}:{formation_index}".
func (z *Zone) Key() string {
	return fmt.Sprintf("%s:%s:%s:%d", z.Symbol, z.Timeframe, z.Type, z.FormationIndex)
}

// Overlaps reports whether a candle's range intersects the zone band.
func (z *Zone) Overlaps(c Candle) bool {
	return c.Low <= z.PriceHigh && c.High >= z.PriceLow
}

// ZoneEvent is the snapshot handed to dispatchers for a newly confirmed zone.
type ZoneEvent struct {
	Zone       Zone      `json:"zone"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	DetectedAt time.Time `json:"detected_at"`
}
