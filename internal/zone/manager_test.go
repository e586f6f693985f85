package zone

import (
	"testing"
	"time"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/models"
)

func testConfig() Config {
	return Config{
		MergeThreshold: 0.5,
		ExpiryBars:     100,
		MaxTouches:     5,
		Weights:        detect.Weights{Body: 0.25, Impulse: 0.30, Touch: 0.20, Volume: 0.15, Sweep: 0.10},
	}
}

func bullishZone(low, high float64, formation int64) *models.Zone {
	return &models.Zone{
		Symbol:         "BTCUSDT",
		Timeframe:      "15m",
		Type:           models.ZoneBullish,
		State:          models.ZoneActive,
		PriceLow:       low,
		PriceHigh:      high,
		FormationIndex: formation,
		FormationTime:  time.Unix(1_700_000_000, 0),
		VolumeSpike:    1,
	}
}

func TestAdmitNewZoneIsNotifiable(t *testing.T) {
	m := NewManager(testConfig())
	z := bullishZone(94, 100, 14)

	result, notify := m.Admit(z)
	if !notify {
		t.Fatal("first zone in an empty set must be notifiable")
	}
	if result != z {
		t.Fatal("expected the admitted zone back")
	}
	if len(m.Active()) != 1 {
		t.Fatalf("expected 1 active zone, got %d", len(m.Active()))
	}
}

func TestAdmitMergesOverlappingSameType(t *testing.T) {
	m := NewManager(testConfig())
	older := bullishZone(94, 100, 14)
	older.Touches = 2
	m.Admit(older)

	// Overlap [95,100] over union [94,101] = 5/7 >= 0.5.
	newcomer := bullishZone(95, 101, 40)
	result, notify := m.Admit(newcomer)

	if notify {
		t.Fatal("merged newcomer must not be notified")
	}
	if result != older {
		t.Fatal("expected the surviving older zone back")
	}
	if result.PriceLow != 94 || result.PriceHigh != 101 {
		t.Errorf("expected union bounds [94, 101], got [%v, %v]", result.PriceLow, result.PriceHigh)
	}
	if result.Touches != 2 {
		t.Errorf("touches must carry over from the older zone, got %d", result.Touches)
	}
	if newcomer.State != models.ZoneMerged {
		t.Errorf("newcomer must be terminal merged, got %s", newcomer.State)
	}
	if got := len(m.Active()); got != 1 {
		t.Fatalf("expected exactly one surviving active zone, got %d", got)
	}
}

func TestAdmitKeepsDisjointAndOppositeTypes(t *testing.T) {
	m := NewManager(testConfig())
	m.Admit(bullishZone(94, 100, 14))

	// Same type but barely overlapping: [99,110] over union [94,110] = 1/16.
	if _, notify := m.Admit(bullishZone(99, 110, 40)); !notify {
		t.Error("below-threshold overlap must create a new zone")
	}

	bearish := bullishZone(94, 100, 50)
	bearish.Type = models.ZoneBearish
	if _, notify := m.Admit(bearish); !notify {
		t.Error("opposite type must never merge")
	}
	if got := len(m.Active()); got != 3 {
		t.Fatalf("expected 3 active zones, got %d", got)
	}
}

func TestTouchIncrementsAndCaps(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTouches = 2
	m := NewManager(cfg)
	z := bullishZone(94, 100, 14)
	m.Admit(z)

	touch := models.Candle{OpenTime: time.Unix(1_700_001_000, 0), Open: 99, High: 101, Low: 98, Close: 100.5, Closed: true}
	for i := int64(20); i < 25; i++ {
		m.Touch(i, touch)
	}
	if z.Touches != 2 {
		t.Errorf("touches must cap at 2, got %d", z.Touches)
	}
	if z.LastTouchIndex != 24 {
		t.Errorf("last touch index must keep advancing past the cap, got %d", z.LastTouchIndex)
	}

	miss := models.Candle{Open: 110, High: 112, Low: 109, Close: 111, Closed: true}
	if updated := m.Touch(25, miss); len(updated) != 0 {
		t.Error("non-intersecting candle must not touch")
	}
}

func TestTouchIgnoresFormationCandle(t *testing.T) {
	m := NewManager(testConfig())
	z := bullishZone(94, 100, 14)
	m.Admit(z)

	inside := models.Candle{Open: 95, High: 99, Low: 94, Close: 98, Closed: true}
	if updated := m.Touch(14, inside); len(updated) != 0 {
		t.Error("formation candle must not count as a touch")
	}
	if z.Touches != 0 {
		t.Errorf("expected 0 touches, got %d", z.Touches)
	}
}

// A zone untouched for exactly ExpiryBars candles is active at bar N-1
// and expired at bar N.
func TestExpiryBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.ExpiryBars = 10
	m := NewManager(cfg)
	z := bullishZone(94, 100, 14)
	m.Admit(z)

	if expired := m.Expire(14 + 9); len(expired) != 0 {
		t.Fatal("zone expired one bar early")
	}
	if expired := m.Expire(14 + 10); len(expired) != 1 {
		t.Fatal("zone not expired at the boundary bar")
	}
	if z.State != models.ZoneExpired {
		t.Errorf("expected expired state, got %s", z.State)
	}
	if len(m.Active()) != 0 {
		t.Error("expired zone still in active set")
	}
}

func TestTouchResetsExpiryClock(t *testing.T) {
	cfg := testConfig()
	cfg.ExpiryBars = 10
	m := NewManager(cfg)
	z := bullishZone(94, 100, 14)
	m.Admit(z)

	touch := models.Candle{OpenTime: time.Unix(1_700_001_000, 0), Open: 99, High: 101, Low: 98, Close: 100.5, Closed: true}
	m.Touch(20, touch)

	if expired := m.Expire(24); len(expired) != 0 {
		t.Fatal("expiry must measure from last touch, not formation")
	}
	if expired := m.Expire(30); len(expired) != 1 {
		t.Fatal("zone not expired 10 bars after last touch")
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	cfg := testConfig()
	cfg.ExpiryBars = 1
	m := NewManager(cfg)
	a := bullishZone(94, 100, 14)
	b := bullishZone(200, 210, 20)
	m.Admit(a)
	m.Admit(b)
	m.Expire(15) // expires a only
	m.Expire(21) // expires b

	h := m.History(10)
	if len(h) != 2 {
		t.Fatalf("expected 2 historical zones, got %d", len(h))
	}
	if h[0].FormationIndex != 20 || h[1].FormationIndex != 14 {
		t.Error("history must be newest first")
	}
	if got := m.History(1); len(got) != 1 || got[0].FormationIndex != 20 {
		t.Error("history limit must keep the newest entries")
	}
}
