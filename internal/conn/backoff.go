package conn

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// NewBackOff returns the reconnect delay schedule: base doubling up to max,
// with +/-25% jitter on every interval.
func NewBackOff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.Reset()
	return b
}

// NextDelay advances the schedule, mapping the library's stop sentinel to the cap.
func NextDelay(b *backoff.ExponentialBackOff, max time.Duration) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop {
		d = max
	}
	return d
}
