package detect

import (
	"time"

	"ZonePulse/internal/domain/models"
)

// Config holds the detection thresholds. All values are validated at
// startup before a Detector is built.
type Config struct {
	ATRPeriod            int
	ATRMult              float64
	BodyMinRatio         float64
	WickMaxRatio         float64
	Lookahead            int
	ImpulseMinDirCandles int
	ImpulseMinNetMove    float64
	VolumeMeanWindow     int
	SweepEnabled         bool
	SweepWickRatio       float64
	SweepReversalBars    int
	MaxTouches           int
	Weights              Weights
}

// CandleWindow provides random access to candles by absolute index.
type CandleWindow interface {
	// At returns the candle at the given absolute index, or false when
	// the index has been evicted or not yet observed.
	At(index int64) (models.Candle, bool)
}

// pending is a candidate waiting for its lookahead window to fill,
// together with the indicator values frozen at its index.
type pending struct {
	models.Candidate
	volatility  float64
	volumeSpike float64
}

// Detector runs the candidate/impulse/sweep pipeline for one
// symbol/timeframe stream. It is single-writer: exactly one session
// goroutine feeds it candles in index order.
type Detector struct {
	cfg       Config
	symbol    string
	timeframe string

	atr     *ATR
	volMean *RollingMean
	pending []pending
}

func NewDetector(cfg Config, symbol, timeframe string) *Detector {
	if cfg.ATRMult <= 0 {
		cfg.ATRMult = 1
	}
	return &Detector{
		cfg:       cfg,
		symbol:    symbol,
		timeframe: timeframe,
		atr:       NewATR(cfg.ATRPeriod),
		volMean:   NewRollingMean(cfg.VolumeMeanWindow),
	}
}

// Observe folds one closed candle at the given absolute index into the
// detector and returns every zone whose candidate became confirmable as
// a result. A candidate at index i is evaluated exactly once, when
// candle i+Lookahead arrives; rejection is permanent.
func (d *Detector) Observe(w CandleWindow, index int64, c models.Candle) []*models.Zone {
	volBase, volBaseOK := d.volMean.Value()
	v, atrOK := d.atr.Update(c)
	v *= d.cfg.ATRMult
	d.volMean.Update(c.Volume)

	if atrOK {
		if cand, ok := d.scan(c, v); ok {
			cand.Index = index
			cand.volumeSpike = 1
			if volBaseOK && volBase > 0 {
				cand.volumeSpike = c.Volume / volBase
			}
			d.pending = append(d.pending, cand)
		}
	}

	var confirmed []*models.Zone
	for len(d.pending) > 0 {
		p := d.pending[0]
		if index-p.Index < int64(d.cfg.Lookahead) {
			break
		}
		d.pending = d.pending[1:]
		if z := d.confirm(w, p); z != nil {
			confirmed = append(confirmed, z)
		}
	}
	return confirmed
}

// scan applies the single-candle candidate filters. The volatility v
// must be defined; the caller guards on ATR readiness.
func (d *Detector) scan(c models.Candle, v float64) (pending, bool) {
	body := c.Body()
	if body < d.cfg.BodyMinRatio*v {
		return pending{}, false
	}

	switch {
	case c.IsDown() && c.UpperWick() <= d.cfg.WickMaxRatio*body:
		return pending{
			Candidate:  models.Candidate{Type: models.ZoneBullish, BodySize: body, Formation: c},
			volatility: v,
		}, true
	case c.IsUp() && c.LowerWick() <= d.cfg.WickMaxRatio*body:
		return pending{
			Candidate:  models.Candidate{Type: models.ZoneBearish, BodySize: body, Formation: c},
			volatility: v,
		}, true
	}
	return pending{}, false
}

// confirm runs impulse validation over the candidate's lookahead window
// and, on success, builds the zone with its initial score.
func (d *Detector) confirm(w CandleWindow, p pending) *models.Zone {
	lookahead := int64(d.cfg.Lookahead)

	var dirCount int
	for j := p.Index + 1; j <= p.Index+lookahead; j++ {
		c, ok := w.At(j)
		if !ok {
			return nil
		}
		if (p.Type == models.ZoneBullish && c.IsUp()) ||
			(p.Type == models.ZoneBearish && c.IsDown()) {
			dirCount++
		}
	}
	if dirCount < d.cfg.ImpulseMinDirCandles {
		return nil
	}

	last, ok := w.At(p.Index + lookahead)
	if !ok {
		return nil
	}
	net := last.Close - p.Formation.Close
	if p.Type == models.ZoneBearish {
		net = -net
	}
	if net < d.cfg.ImpulseMinNetMove*p.volatility {
		return nil
	}

	low := p.Formation.Close
	high := p.Formation.Open
	if low > high {
		low, high = high, low
	}

	netFactor := clip01((net / p.volatility) / (2 * d.cfg.ImpulseMinNetMove))
	dirFactor := clip01(float64(dirCount) / float64(d.cfg.Lookahead))

	z := &models.Zone{
		Symbol:          d.symbol,
		Timeframe:       d.timeframe,
		Type:            p.Type,
		State:           models.ZoneActive,
		PriceLow:        low,
		PriceHigh:       high,
		FormationIndex:  p.Index,
		FormationTime:   p.Formation.OpenTime,
		BodyRatio:       p.BodySize / p.volatility,
		ImpulseStrength: (dirFactor + netFactor) / 2,
		VolumeSpike:     p.volumeSpike,
		CreatedAt:       time.Now().UTC(),
	}
	if d.cfg.SweepEnabled {
		z.LiquiditySweep = d.detectSweep(w, p, low, high)
	}
	z.Score = Score(d.cfg.Weights, z, d.cfg.MaxTouches)
	return z
}

// detectSweep looks for a stop-hunt wick piercing the zone boundary
// shortly after formation, with price closing back inside the band
// within the reversal window.
func (d *Detector) detectSweep(w CandleWindow, p pending, low, high float64) bool {
	body := p.BodySize
	end := p.Index + int64(d.cfg.Lookahead)

	for j := p.Index + 1; j <= end; j++ {
		c, ok := w.At(j)
		if !ok {
			return false
		}

		var pierced bool
		if p.Type == models.ZoneBullish {
			pierced = low-c.Low >= d.cfg.SweepWickRatio*body
		} else {
			pierced = c.High-high >= d.cfg.SweepWickRatio*body
		}
		if !pierced {
			continue
		}

		revEnd := j + int64(d.cfg.SweepReversalBars)
		if revEnd > end {
			revEnd = end
		}
		for k := j; k <= revEnd; k++ {
			rc, ok := w.At(k)
			if !ok {
				break
			}
			if rc.Close >= low && rc.Close <= high {
				return true
			}
			if p.Type == models.ZoneBullish && rc.Close > high {
				return true
			}
			if p.Type == models.ZoneBearish && rc.Close < low {
				return true
			}
		}
	}
	return false
}

// PendingCount reports candidates still waiting on lookahead data.
func (d *Detector) PendingCount() int {
	return len(d.pending)
}
