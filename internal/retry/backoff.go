// Package retry computes the delay between attempts of a failed operation.
// Storage drivers and the upload client share it.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff grows the delay exponentially from Initial up to Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64 // values below 1 mean 2
	Jitter     float64 // fraction of the delay randomly added or removed, capped at 1
}

// Delay returns the wait after the given failed attempt (0-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	delay := float64(b.Initial) * math.Pow(multiplier, float64(attempt))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		delay *= 1 + (rand.Float64()*2-1)*math.Min(b.Jitter, 1)
	}
	return time.Duration(delay)
}
