package queue

import (
	"math"
	"math/rand"
	"time"
)

// Backoff returns the delay before the next delivery using exponential
// backoff with jitter. The delay is drawn uniformly from [base, ceiling]
// where the ceiling doubles per attempt up to max; flooring at base keeps a
// rescheduled job from becoming due in the same instant it was nacked.
// attempt is the number of completed attempts and is expected to be >= 1.
func Backoff(base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if attempt < 1 {
		attempt = 1
	}

	ceiling := float64(base) * math.Pow(2, float64(attempt-1))
	if ceiling > float64(max) {
		ceiling = float64(max)
	}

	if rng == nil {
		return time.Duration(ceiling)
	}

	span := int64(ceiling) - int64(base)
	if span <= 0 {
		return base
	}

	return base + time.Duration(rng.Int63n(span+1))
}
