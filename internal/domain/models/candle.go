package models

import "time"

// Candle represents a single closed OHLCV record. Candles are immutable once
// closed and ordered by OpenTime, strictly increasing within one buffer.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Closed   bool
}

// Body returns the absolute candle body size.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

// UpperWick returns the distance from the body top to the high.
func (c Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}

// LowerWick returns the distance from the low to the body bottom.
func (c Candle) LowerWick() float64 {
	bottom := c.Open
	if c.Close < bottom {
		bottom = c.Close
	}
	return bottom - c.Low
}

// IsUp reports whether the candle closed above its open.
func (c Candle) IsUp() bool { return c.Close > c.Open }

// IsDown reports whether the candle closed below its open.
func (c Candle) IsDown() bool { return c.Close < c.Open }

// KlineEvent is a single kline update from the feed. Events with Closed=false
// describe an in-progress candle and are ignored by the live session.
type KlineEvent struct {
	Symbol    string
	Timeframe string
	Candle    Candle
}
