package session

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: base doubling per attempt, capped
// at Max, plus uniform jitter in [0, Jitter). Delays are non-decreasing
// until the cap and never fall below Base.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// Delay returns the sleep duration for the given attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max || d <= 0 {
			d = b.Max
			break
		}
	}
	if d < b.Base {
		d = b.Base
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}
