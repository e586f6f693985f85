package detect

import "ZonePulse/internal/domain/models"

// Weights are the composite score coefficients. They must sum to 1.0;
// config validation enforces that before a detector is ever built.
type Weights struct {
	Body    float64
	Impulse float64
	Touch   float64
	Volume  float64
	Sweep   float64
}

// Score computes the composite confidence for a zone from its carried
// factor inputs plus its current touch and sweep state. Every factor is
// clipped to [0,1], so the weighted sum stays in [0,1] as long as the
// weights sum to 1.
func Score(w Weights, z *models.Zone, maxTouches int) float64 {
	fBody := clip01(z.BodyRatio / 2)
	fImpulse := clip01(z.ImpulseStrength)
	fTouch := clip01(float64(min(z.Touches, maxTouches)) / float64(maxTouches))
	fVolume := clip01((z.VolumeSpike - 1) / 2)
	fSweep := 0.0
	if z.LiquiditySweep {
		fSweep = 1
	}
	return w.Body*fBody + w.Impulse*fImpulse + w.Touch*fTouch + w.Volume*fVolume + w.Sweep*fSweep
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
