package session

import (
	"testing"

	"ZonePulse/internal/domain/models"
)

func candleAt(price float64) models.Candle {
	return models.Candle{Open: price, High: price + 1, Low: price - 1, Close: price, Closed: true}
}

func TestBufferAppendAssignsGrowingIndices(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		idx := b.Append(candleAt(float64(i)))
		if idx != int64(i) {
			t.Fatalf("expected index %d, got %d", i, idx)
		}
	}
	if b.LastIndex() != 4 {
		t.Errorf("expected last index 4, got %d", b.LastIndex())
	}
}

// Capacity 500, 501 appends: exactly 500 remain, the first candle is
// evicted and order is preserved.
func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer(500)
	for i := 0; i < 501; i++ {
		b.Append(candleAt(float64(i)))
	}
	if b.Len() != 500 {
		t.Fatalf("expected 500 candles, got %d", b.Len())
	}
	if _, ok := b.At(0); ok {
		t.Error("first candle must be evicted")
	}
	for i := int64(1); i <= 500; i++ {
		c, ok := b.At(i)
		if !ok {
			t.Fatalf("candle %d missing", i)
		}
		if c.Open != float64(i) {
			t.Fatalf("order broken at %d: got open %v", i, c.Open)
		}
	}
}

func TestBufferAtOutOfRange(t *testing.T) {
	b := NewBuffer(10)
	if _, ok := b.At(0); ok {
		t.Error("empty buffer must have no candles")
	}
	b.Append(candleAt(1))
	if _, ok := b.At(1); ok {
		t.Error("future index must not resolve")
	}
	if _, ok := b.At(-1); ok {
		t.Error("negative index must not resolve")
	}
}

func TestBufferLast(t *testing.T) {
	b := NewBuffer(2)
	if _, ok := b.Last(); ok {
		t.Error("empty buffer has no last candle")
	}
	b.Append(candleAt(1))
	b.Append(candleAt(2))
	b.Append(candleAt(3))
	c, ok := b.Last()
	if !ok || c.Open != 3 {
		t.Errorf("expected last open 3, got %v (ok=%v)", c.Open, ok)
	}
}
