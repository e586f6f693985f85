package detect

import (
	"testing"
	"time"

	"ZonePulse/internal/domain/models"
)

// sliceWindow backs a CandleWindow with a plain slice for tests.
type sliceWindow struct {
	candles []models.Candle
}

func (w *sliceWindow) At(index int64) (models.Candle, bool) {
	if index < 0 || index >= int64(len(w.candles)) {
		return models.Candle{}, false
	}
	return w.candles[index], true
}

func testConfig() Config {
	return Config{
		ATRPeriod:            14,
		BodyMinRatio:         0.5,
		WickMaxRatio:         0.3,
		Lookahead:            10,
		ImpulseMinDirCandles: 6,
		ImpulseMinNetMove:    1.5,
		VolumeMeanWindow:     20,
		SweepEnabled:         false,
		SweepWickRatio:       0.6,
		SweepReversalBars:    3,
		MaxTouches:           5,
		Weights:              Weights{Body: 0.25, Impulse: 0.30, Touch: 0.20, Volume: 0.15, Sweep: 0.10},
	}
}

// flatCandle has range 10 and no body, pinning ATR near 10.
func flatCandle() models.Candle {
	return models.Candle{Open: 100, High: 105, Low: 95, Close: 100, Volume: 1000, Closed: true}
}

func feed(d *Detector, w *sliceWindow, candles ...models.Candle) []*models.Zone {
	var zones []*models.Zone
	for _, c := range candles {
		w.candles = append(w.candles, c)
		idx := int64(len(w.candles) - 1)
		zones = append(zones, d.Observe(w, idx, c)...)
	}
	return zones
}

// Warmup plus a strong down candle followed by ten up candles: the
// canonical bullish confirmation path. Candidate candle open=100
// close=94 high=100.5 low=93 has body 6 against ATR near 10 and an
// upper wick of 0.5, well inside the wick cap.
func TestDetectorConfirmsBullishZone(t *testing.T) {
	d := NewDetector(testConfig(), "BTCUSDT", "15m")
	w := &sliceWindow{}

	warmup := make([]models.Candle, 14)
	for i := range warmup {
		warmup[i] = flatCandle()
	}
	feed(d, w, warmup...)

	candidate := models.Candle{
		OpenTime: time.Unix(1_700_000_000, 0),
		Open:     100, High: 100.5, Low: 93, Close: 94,
		Volume: 1500, Closed: true,
	}
	if zones := feed(d, w, candidate); len(zones) != 0 {
		t.Fatal("zone confirmed before lookahead window filled")
	}
	if d.PendingCount() != 1 {
		t.Fatalf("expected 1 pending candidate, got %d", d.PendingCount())
	}

	// Ten up candles driving close from 94 to 110.
	up := make([]models.Candle, 10)
	prev := 94.0
	for i := range up {
		next := prev + 1.6
		up[i] = models.Candle{Open: prev, High: next + 0.2, Low: prev - 0.2, Close: next, Volume: 1000, Closed: true}
		prev = next
	}
	zones := feed(d, w, up...)

	if len(zones) != 1 {
		t.Fatalf("expected 1 confirmed zone, got %d", len(zones))
	}
	z := zones[0]
	if z.Type != models.ZoneBullish {
		t.Errorf("expected bullish zone, got %s", z.Type)
	}
	if z.PriceLow != 94 || z.PriceHigh != 100 {
		t.Errorf("expected zone bounds [94, 100], got [%v, %v]", z.PriceLow, z.PriceHigh)
	}
	if z.FormationIndex != 14 {
		t.Errorf("expected formation index 14, got %d", z.FormationIndex)
	}
	if z.State != models.ZoneActive {
		t.Errorf("expected active state, got %s", z.State)
	}
	if z.Score < 0 || z.Score > 1 {
		t.Errorf("score out of [0,1]: %v", z.Score)
	}
	if d.PendingCount() != 0 {
		t.Errorf("candidate not consumed, %d pending", d.PendingCount())
	}
}

// The body filter compares against ATR scaled by the multiplier: a
// candle with body 6 passes at mult 1 (threshold 0.5·10) but not at
// mult 2 (threshold 0.5·20).
func TestDetectorATRMultRaisesBodyThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.ATRMult = 2
	d := NewDetector(cfg, "BTCUSDT", "15m")
	w := &sliceWindow{}

	warmup := make([]models.Candle, 14)
	for i := range warmup {
		warmup[i] = flatCandle()
	}
	feed(d, w, warmup...)

	candidate := models.Candle{
		Open: 100, High: 100.5, Low: 93, Close: 94,
		Volume: 1500, Closed: true,
	}
	feed(d, w, candidate)
	if d.PendingCount() != 0 {
		t.Fatalf("expected no candidate at mult 2, got %d pending", d.PendingCount())
	}
}

// A zero multiplier from a hand-built config falls back to 1 instead
// of zeroing every threshold.
func TestDetectorZeroATRMultDefaultsToOne(t *testing.T) {
	d := NewDetector(testConfig(), "BTCUSDT", "15m")
	if d.cfg.ATRMult != 1 {
		t.Fatalf("expected multiplier 1, got %v", d.cfg.ATRMult)
	}
}

func TestDetectorRejectsWeakImpulse(t *testing.T) {
	d := NewDetector(testConfig(), "BTCUSDT", "15m")
	w := &sliceWindow{}

	warmup := make([]models.Candle, 14)
	for i := range warmup {
		warmup[i] = flatCandle()
	}
	feed(d, w, warmup...)

	candidate := models.Candle{Open: 100, High: 100.5, Low: 93, Close: 94, Volume: 1500, Closed: true}
	feed(d, w, candidate)

	// Only three up candles in the lookahead window; the rest drift down.
	follow := make([]models.Candle, 10)
	prev := 94.0
	for i := range follow {
		var next float64
		if i < 3 {
			next = prev + 2
		} else {
			next = prev - 0.5
		}
		follow[i] = models.Candle{Open: prev, High: maxf(prev, next) + 0.2, Low: minf(prev, next) - 0.2, Close: next, Volume: 1000, Closed: true}
		prev = next
	}
	if zones := feed(d, w, follow...); len(zones) != 0 {
		t.Fatalf("expected no zones from weak impulse, got %d", len(zones))
	}
	if d.PendingCount() != 0 {
		t.Error("rejected candidate must be discarded, not retried")
	}
}

func TestDetectorNoCandidateBeforeWarmup(t *testing.T) {
	d := NewDetector(testConfig(), "BTCUSDT", "15m")
	w := &sliceWindow{}

	// Strong down candle at index 0: volatility is undefined so no
	// candidate may form.
	candidate := models.Candle{Open: 100, High: 100.5, Low: 93, Close: 94, Volume: 1500, Closed: true}
	feed(d, w, candidate)
	if d.PendingCount() != 0 {
		t.Error("candidate formed while volatility undefined")
	}
}

func TestDetectorWickCapRejectsCandidate(t *testing.T) {
	d := NewDetector(testConfig(), "BTCUSDT", "15m")
	w := &sliceWindow{}

	warmup := make([]models.Candle, 14)
	for i := range warmup {
		warmup[i] = flatCandle()
	}
	feed(d, w, warmup...)

	// Body 6 but upper wick 3 > 0.3*6.
	rejected := models.Candle{Open: 100, High: 103, Low: 93, Close: 94, Volume: 1500, Closed: true}
	feed(d, w, rejected)
	if d.PendingCount() != 0 {
		t.Error("candidate accepted despite oversized opposite wick")
	}
}

func TestDetectorSweepFlag(t *testing.T) {
	cfg := testConfig()
	cfg.SweepEnabled = true
	d := NewDetector(cfg, "BTCUSDT", "15m")
	w := &sliceWindow{}

	warmup := make([]models.Candle, 14)
	for i := range warmup {
		warmup[i] = flatCandle()
	}
	feed(d, w, warmup...)

	candidate := models.Candle{Open: 100, High: 100.5, Low: 93, Close: 94, Volume: 1500, Closed: true}
	feed(d, w, candidate)

	// First follow-up candle dives 4 below the zone low (>= 0.6*6) then
	// closes back inside the band; the rest impulse upward.
	follow := make([]models.Candle, 10)
	follow[0] = models.Candle{Open: 94, High: 96.5, Low: 90, Close: 96, Volume: 1000, Closed: true}
	prev := 96.0
	for i := 1; i < 10; i++ {
		next := prev + 1.6
		follow[i] = models.Candle{Open: prev, High: next + 0.2, Low: prev - 0.2, Close: next, Volume: 1000, Closed: true}
		prev = next
	}
	zones := feed(d, w, follow...)
	if len(zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(zones))
	}
	if !zones[0].LiquiditySweep {
		t.Error("expected liquidity sweep flag set")
	}
}

func TestScoreStaysInUnitInterval(t *testing.T) {
	w := Weights{Body: 0.25, Impulse: 0.30, Touch: 0.20, Volume: 0.15, Sweep: 0.10}
	z := &models.Zone{
		BodyRatio:       10, // extreme inputs must clip, not overflow
		ImpulseStrength: 5,
		VolumeSpike:     100,
		Touches:         50,
		LiquiditySweep:  true,
	}
	s := Score(w, z, 5)
	if s < 0 || s > 1 {
		t.Fatalf("score out of [0,1]: %v", s)
	}
	if s != 1 {
		t.Errorf("fully saturated factors should score 1, got %v", s)
	}

	zero := &models.Zone{VolumeSpike: 1}
	if s := Score(w, zero, 5); s != 0 {
		t.Errorf("zero factors should score 0, got %v", s)
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
