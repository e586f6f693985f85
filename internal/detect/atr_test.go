package detect

import (
	"testing"

	"ZonePulse/internal/domain/models"
)

func TestATRUndefinedUntilPeriod(t *testing.T) {
	a := NewATR(3)
	c := models.Candle{Open: 100, High: 105, Low: 95, Close: 100}

	for i := 0; i < 2; i++ {
		if _, ok := a.Update(c); ok {
			t.Fatalf("ATR reported ready after %d candles, period is 3", i+1)
		}
	}
	v, ok := a.Update(c)
	if !ok {
		t.Fatal("ATR not ready after period candles")
	}
	if v != 10 {
		t.Errorf("expected ATR 10 for constant-range candles, got %v", v)
	}
}

func TestATRUsesGapFromPrevClose(t *testing.T) {
	a := NewATR(2)
	a.Update(models.Candle{Open: 100, High: 101, Low: 99, Close: 100})
	// Gap up: true range is high minus previous close, not high minus low.
	v, ok := a.Update(models.Candle{Open: 110, High: 111, Low: 109, Close: 110})
	if !ok {
		t.Fatal("ATR not ready")
	}
	if v != (2+11)/2.0 {
		t.Errorf("expected ATR 6.5 with gap true range, got %v", v)
	}
}

func TestATRWindowSlides(t *testing.T) {
	a := NewATR(2)
	a.Update(models.Candle{Open: 0, High: 100, Low: 0, Close: 50})
	a.Update(models.Candle{Open: 50, High: 52, Low: 48, Close: 50})
	v, _ := a.Update(models.Candle{Open: 50, High: 52, Low: 48, Close: 50})
	if v != 4 {
		t.Errorf("expected first candle evicted from window, ATR 4, got %v", v)
	}
}

func TestRollingMean(t *testing.T) {
	m := NewRollingMean(3)
	if _, ok := m.Update(3); ok {
		t.Fatal("mean reported ready before window filled")
	}
	m.Update(6)
	v, ok := m.Update(9)
	if !ok || v != 6 {
		t.Fatalf("expected mean 6, got %v (ready=%v)", v, ok)
	}
	v, _ = m.Update(12)
	if v != 9 {
		t.Errorf("expected sliding mean 9, got %v", v)
	}
}
