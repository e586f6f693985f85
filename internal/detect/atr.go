package detect

import "ZonePulse/internal/domain/models"

// ATR maintains a rolling average of per-candle true range. Updates are
// O(1): a ring of the last period true ranges plus a running sum.
// Value is undefined until period candles have been observed.
type ATR struct {
	period    int
	ranges    []float64
	head      int
	count     int
	sum       float64
	prevClose float64
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		ranges: make([]float64, period),
	}
}

// Update folds one candle into the window and returns the current value.
func (a *ATR) Update(c models.Candle) (float64, bool) {
	tr := c.High - c.Low
	if a.hasPrev {
		if d := abs(c.High - a.prevClose); d > tr {
			tr = d
		}
		if d := abs(c.Low - a.prevClose); d > tr {
			tr = d
		}
	}
	a.prevClose = c.Close
	a.hasPrev = true

	if a.count == a.period {
		a.sum -= a.ranges[a.head]
	} else {
		a.count++
	}
	a.ranges[a.head] = tr
	a.sum += tr
	a.head = (a.head + 1) % a.period

	return a.Value()
}

// Value returns the current average true range. The second return is
// false while fewer than period candles have been observed; callers
// must treat that as "not ready", never as zero.
func (a *ATR) Value() (float64, bool) {
	if a.count < a.period {
		return 0, false
	}
	return a.sum / float64(a.period), true
}

// RollingMean is a fixed-window arithmetic mean, used for the volume
// baseline behind the volume-spike factor.
type RollingMean struct {
	window int
	values []float64
	head   int
	count  int
	sum    float64
}

func NewRollingMean(window int) *RollingMean {
	return &RollingMean{
		window: window,
		values: make([]float64, window),
	}
}

func (m *RollingMean) Update(v float64) (float64, bool) {
	if m.count == m.window {
		m.sum -= m.values[m.head]
	} else {
		m.count++
	}
	m.values[m.head] = v
	m.sum += v
	m.head = (m.head + 1) % m.window
	return m.Value()
}

func (m *RollingMean) Value() (float64, bool) {
	if m.count < m.window {
		return 0, false
	}
	return m.sum / float64(m.window), true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
