package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Config describes a bounded exponential backoff. MaxAttempts below one
// means a single attempt.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Backoff returns the wait before retry n (zero-based).
func (c Config) Backoff(n int) time.Duration {
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(c.Delay) * math.Pow(mult, float64(n)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a *Permanent error, the attempts
// run out or ctx ends. The last error from fn is returned, unwrapped when
// it was permanent.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for n := range attempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); err == nil {
			return nil
		}
		var p *Permanent
		if errors.As(err, &p) {
			return p.Err
		}
		if n == attempts-1 {
			break
		}

		timer := time.NewTimer(cfg.Backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
