package zone

import (
	"sync"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/models"
)

// Config holds the zone lifecycle thresholds.
type Config struct {
	MergeThreshold float64
	ExpiryBars     int
	MaxTouches     int
	Weights        detect.Weights
}

// Manager owns the zone set for one symbol/timeframe stream. A single
// session goroutine mutates it in candle order; reads from the HTTP
// layer go through the lock, so mutation order depends only on candle
// order.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	active []*models.Zone
	closed []*models.Zone
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Admit offers a freshly confirmed zone to the manager. When an active
// zone of the same type overlaps it at or above the merge threshold,
// the newcomer is folded into that zone: bounds widen to the union, the
// survivor's touches carry over and its score is recomputed. A merged
// newcomer is terminal and must not be notified. The returned zone is
// the one now active; notify reports whether it is new.
func (m *Manager) Admit(z *models.Zone) (result *models.Zone, notify bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.active {
		if existing.Type != z.Type {
			continue
		}
		if overlapRatio(existing.PriceLow, existing.PriceHigh, z.PriceLow, z.PriceHigh) < m.cfg.MergeThreshold {
			continue
		}
		if z.PriceLow < existing.PriceLow {
			existing.PriceLow = z.PriceLow
		}
		if z.PriceHigh > existing.PriceHigh {
			existing.PriceHigh = z.PriceHigh
		}
		existing.Score = detect.Score(m.cfg.Weights, existing, m.cfg.MaxTouches)

		z.State = models.ZoneMerged
		m.closed = append(m.closed, z)
		return existing, false
	}

	m.active = append(m.active, z)
	return z, true
}

// Touch credits every active zone intersected by the candle's range and
// recomputes scores. Touches are capped; an exhausted zone stays active
// but earns no further touch credit.
func (m *Manager) Touch(index int64, c models.Candle) []*models.Zone {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated []*models.Zone
	for _, z := range m.active {
		// The formation candle itself and the zone's own confirmation
		// window never count as touches.
		if index <= z.FormationIndex {
			continue
		}
		if !z.Overlaps(c) {
			continue
		}
		z.LastTouchIndex = index
		z.LastTouchAt = c.OpenTime
		if z.Touches < m.cfg.MaxTouches {
			z.Touches++
			z.Score = detect.Score(m.cfg.Weights, z, m.cfg.MaxTouches)
		}
		updated = append(updated, z)
	}
	return updated
}

// Expire retires every active zone whose last touch (or formation, if
// never touched) lies at least ExpiryBars candles behind the given
// index. Expired zones are terminal and never resurrected.
func (m *Manager) Expire(index int64) []*models.Zone {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*models.Zone
	kept := m.active[:0]
	for _, z := range m.active {
		ref := z.FormationIndex
		if z.LastTouchIndex > ref {
			ref = z.LastTouchIndex
		}
		if index-ref >= int64(m.cfg.ExpiryBars) {
			z.State = models.ZoneExpired
			m.closed = append(m.closed, z)
			expired = append(expired, z)
			continue
		}
		kept = append(kept, z)
	}
	m.active = kept
	return expired
}

// Active returns a snapshot of the active zones.
func (m *Manager) Active() []models.Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Zone, len(m.active))
	for i, z := range m.active {
		out[i] = *z
	}
	return out
}

// History returns up to limit terminal (merged or expired) zones,
// newest first.
func (m *Manager) History(limit int) []models.Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.closed)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Zone, 0, n)
	for i := len(m.closed) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *m.closed[i])
	}
	return out
}

// overlapRatio is intersection length over union length of two price
// ranges; zero when the ranges are disjoint or degenerate.
func overlapRatio(lo1, hi1, lo2, hi2 float64) float64 {
	interLo := lo1
	if lo2 > interLo {
		interLo = lo2
	}
	interHi := hi1
	if hi2 < interHi {
		interHi = hi2
	}
	if interHi <= interLo {
		return 0
	}
	unionLo := lo1
	if lo2 < unionLo {
		unionLo = lo2
	}
	unionHi := hi1
	if hi2 > unionHi {
		unionHi = hi2
	}
	if unionHi <= unionLo {
		return 0
	}
	return (interHi - interLo) / (unionHi - unionLo)
}
