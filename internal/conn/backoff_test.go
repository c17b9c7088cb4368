package conn

import (
	"testing"
	"time"
)

func TestBackoff_Envelope(t *testing.T) {
	base := 2 * time.Second
	max := 60 * time.Second
	b := NewBackOff(base, max)

	expected := base
	for i := 0; i < 12; i++ {
		d := NextDelay(b, max)

		lo := time.Duration(float64(expected) * 0.75)
		hi := time.Duration(float64(expected) * 1.25)
		if d < lo || d > hi {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", i, d, lo, hi)
		}

		expected *= 2
		if expected > max {
			expected = max
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second
	b := NewBackOff(base, max)

	// Burn through a few intervals, then reset back to base.
	for i := 0; i < 5; i++ {
		NextDelay(b, max)
	}
	b.Reset()

	d := NextDelay(b, max)
	lo := time.Duration(float64(base) * 0.75)
	hi := time.Duration(float64(base) * 1.25)
	if d < lo || d > hi {
		t.Errorf("post-reset delay %v outside [%v, %v]", d, lo, hi)
	}
}

func TestBackoff_CappedAtMax(t *testing.T) {
	base := 50 * time.Millisecond
	max := 200 * time.Millisecond
	b := NewBackOff(base, max)

	for i := 0; i < 20; i++ {
		d := NextDelay(b, max)
		hi := time.Duration(float64(max) * 1.25)
		if d > hi {
			t.Errorf("attempt %d: delay %v exceeds cap envelope %v", i, d, hi)
		}
	}
}
