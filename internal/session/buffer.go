package session

import "ZonePulse/internal/domain/models"

// Buffer is a bounded FIFO candle window with absolute indexing. The
// first candle ever appended gets index 0 and indices only grow;
// eviction moves the readable window forward without renumbering, so
// detection state anchored to an index stays valid across evictions.
type Buffer struct {
	capacity int
	candles  []models.Candle
	head     int
	count    int
	next     int64 // absolute index of the next append
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		capacity: capacity,
		candles:  make([]models.Candle, capacity),
	}
}

// Append adds a candle, evicting the oldest when full, and returns the
// absolute index assigned to it.
func (b *Buffer) Append(c models.Candle) int64 {
	pos := (b.head + b.count) % b.capacity
	if b.count == b.capacity {
		b.head = (b.head + 1) % b.capacity
	} else {
		b.count++
	}
	b.candles[pos] = c

	idx := b.next
	b.next++
	return idx
}

// At returns the candle at an absolute index; false when the index was
// evicted or not yet appended.
func (b *Buffer) At(index int64) (models.Candle, bool) {
	base := b.next - int64(b.count)
	if index < base || index >= b.next {
		return models.Candle{}, false
	}
	pos := (b.head + int(index-base)) % b.capacity
	return b.candles[pos], true
}

// Last returns the most recently appended candle.
func (b *Buffer) Last() (models.Candle, bool) {
	if b.count == 0 {
		return models.Candle{}, false
	}
	return b.At(b.next - 1)
}

// LastIndex returns the absolute index of the most recent candle, or
// -1 when the buffer is empty.
func (b *Buffer) LastIndex() int64 {
	return b.next - 1
}

// Len reports how many candles are currently held.
func (b *Buffer) Len() int {
	return b.count
}
