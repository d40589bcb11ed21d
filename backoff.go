package sioclient

import (
	"math"
	"math/rand"
	"time"
)

// Backoff yields min(base * factor^attempt, max), optionally spread by jitter.
type Backoff struct {
	min      time.Duration
	max      time.Duration
	factor   float64
	jitter   float64
	attempts int
}

func NewBackoff(min, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		min:    min,
		max:    max,
		factor: 2,
		jitter: jitter,
	}
}

// Duration returns the delay for the next attempt and counts it.
func (b *Backoff) Duration() time.Duration {
	ms := float64(b.min) * math.Pow(b.factor, float64(b.attempts))
	b.attempts++

	// Clamp before jitter so a long outage cannot overflow to Inf.
	if ms > float64(b.max) {
		ms = float64(b.max)
	}

	if b.jitter > 0 {
		randVal := rand.Float64()
		deviation := math.Floor(randVal * b.jitter * ms)
		if int(math.Floor(randVal*10))&1 == 0 {
			ms -= deviation
		} else {
			ms += deviation
		}
	}

	return time.Duration(math.Max(0, math.Min(ms, float64(b.max))))
}

func (b *Backoff) Attempts() int {
	return b.attempts
}

func (b *Backoff) Reset() {
	b.attempts = 0
}
