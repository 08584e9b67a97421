package retry

import (
	"context"
	"math/rand"
	"time"

	"mini-lb/config"
)

// Backoff is capped exponential backoff with uniform jitter.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the delay added at random, in [0, 1]
}

func BackoffFromConfig(c config.BackoffConfig) Backoff {
	return Backoff{
		Initial:    c.Initial,
		Max:        c.Max,
		Multiplier: c.Multiplier,
		Jitter:     c.Jitter,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		delay *= multiplier
	}

	ceiling := b.Max
	if ceiling < b.Initial {
		ceiling = b.Initial
	}
	backoff := time.Duration(delay)
	if backoff < 0 || backoff > ceiling {
		backoff = ceiling
	}

	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		backoff += time.Duration(float64(backoff) * jitter * rand.Float64())
		if backoff > ceiling {
			backoff = ceiling
		}
	}
	return backoff
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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
