// Package pacing implements the Pacing Gate (spec.md §4.3): the
// per-attempt wait between credential attempts. Delay and jitter are
// mutually exclusive, modeled as a tagged variant so the impossible
// "both configured" state cannot be constructed (spec.md §9).
package pacing

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Mode identifies which pacing strategy is active.
type Mode int

const (
	// None waits nothing between attempts.
	None Mode = iota
	// Fixed waits a constant duration between attempts.
	Fixed
	// Jitter waits a uniformly random duration in [Min, Max] between
	// attempts.
	Jitter
)

// Gate computes and performs the inter-attempt wait.
type Gate struct {
	mode     Mode
	fixed    time.Duration
	jitterLo time.Duration
	jitterHi time.Duration
	rng      *rand.Rand
}

// NewNone returns a Gate that never waits.
func NewNone() *Gate {
	return &Gate{mode: None}
}

// NewFixed returns a Gate that waits exactly d between attempts.
func NewFixed(d time.Duration) (*Gate, error) {
	if d < 0 {
		return nil, fmt.Errorf("delay must not be negative: %s", d)
	}
	return &Gate{mode: Fixed, fixed: d}, nil
}

// NewJitter returns a Gate that waits a uniformly random duration in
// [min, max] between attempts. min must not be negative and must be
// <= max; either violation is an error.
func NewJitter(min, max time.Duration) (*Gate, error) {
	if min < 0 {
		return nil, fmt.Errorf("jitter-min must not be negative: %s", min)
	}
	if max < min {
		return nil, fmt.Errorf("jitter (%s) must be >= jitter-min (%s)", max, min)
	}
	return &Gate{
		mode:     Jitter,
		jitterLo: min,
		jitterHi: max,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// NewFromConfig validates and constructs a Gate from the mutually
// exclusive delay/jitter options a CLI would expose. Exactly one of
// delay or jitter (jitterHi) may be set; supplying both is a
// configuration error per spec.md §4.3 and invariant 4 in spec.md §8.
func NewFromConfig(hasDelay bool, delay time.Duration, hasJitter bool, jitterMin, jitterMax time.Duration) (*Gate, error) {
	switch {
	case hasDelay && hasJitter:
		return nil, fmt.Errorf("--delay and --jitter are mutually exclusive")
	case hasDelay:
		return NewFixed(delay)
	case hasJitter:
		return NewJitter(jitterMin, jitterMax)
	default:
		return NewNone(), nil
	}
}

// Wait suspends the caller for the configured duration, or returns
// immediately if ctx is cancelled first. It must be called between
// attempts, never before the first attempt of a run (spec.md §4.3).
func (g *Gate) Wait(ctx context.Context) error {
	d := g.next()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) next() time.Duration {
	switch g.mode {
	case Fixed:
		return g.fixed
	case Jitter:
		span := g.jitterHi - g.jitterLo
		if span <= 0 {
			return g.jitterLo
		}
		return g.jitterLo + time.Duration(g.rng.Int63n(int64(span)+1))
	default:
		return 0
	}
}
