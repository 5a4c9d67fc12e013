package resolver

import (
	"context"
	"sync"

	"github.com/Skryldev/audiobatch/domain/model"
	"go.uber.org/multierr"
)

// EncoderProber answers whether an encoder is available.
type EncoderProber interface {
	HasEncoder(ctx context.Context, name string) (bool, error)
}

// EncoderCache memoizes encoder probes for a single run. Each encoder is
// probed at most once; a failed probe is cached as unavailable.
type EncoderCache struct {
	prober EncoderProber

	mu    sync.Mutex
	known map[string]bool
}

func NewEncoderCache(prober EncoderProber) *EncoderCache {
	return &EncoderCache{prober: prober, known: map[string]bool{}}
}

// Has reports whether name is available, probing on first use.
func (c *EncoderCache) Has(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok, cached := c.known[name]; cached {
		return ok, nil
	}
	ok, err := c.prober.HasEncoder(ctx, name)
	if err != nil {
		ok = false
	}
	c.known[name] = ok
	return ok, err
}

// Snapshot probes the candidates relevant to format and returns an
// immutable EncoderSet for Resolve. Probe errors are returned combined;
// the set is still usable and treats failed probes as unavailable.
func (c *EncoderCache) Snapshot(ctx context.Context, format model.Format) (EncoderSet, error) {
	set := EncoderSet{}
	var errs error
	for _, name := range ProbeCandidates(format) {
		ok, err := c.Has(ctx, name)
		errs = multierr.Append(errs, err)
		set[name] = ok
		if ok {
			// Candidates are in preference order; later ones cannot win.
			break
		}
	}
	return set, errs
}
