package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voxime/pkg/provider/stt"
)

// ErrAllFailed is returned when every back end of a [Failover] failed or had
// an open breaker.
var ErrAllFailed = errors.New("resilience: all stt providers failed")

type backend struct {
	name     string
	provider stt.Provider
	breaker  *Breaker
}

// Failover implements [stt.Provider] over an ordered list of back ends, each
// guarded by its own [Breaker]. Stream starts go to the first back end whose
// breaker admits the call.
type Failover struct {
	cfg      BreakerConfig
	backends []backend
}

var _ stt.Provider = (*Failover)(nil)

// NewFailover creates a Failover with primary as the preferred back end. cfg
// is the template for every back end's breaker; its Name is replaced by the
// back-end name.
func NewFailover(primaryName string, primary stt.Provider, cfg BreakerConfig) *Failover {
	f := &Failover{cfg: cfg}
	f.Add(primaryName, primary)
	return f
}

// Add appends a fallback back end. Back ends are tried in the order added.
func (f *Failover) Add(name string, p stt.Provider) {
	cfg := f.cfg
	cfg.Name = name
	f.backends = append(f.backends, backend{name: name, provider: p, breaker: NewBreaker(cfg)})
}

// StartStream opens a session on the first healthy back end.
func (f *Failover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	var lastErr error
	for _, be := range f.backends {
		var sess stt.SessionHandle
		err := be.breaker.Do(func() error {
			var err error
			sess, err = be.provider.StartStream(ctx, cfg)
			return err
		})
		if err == nil {
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping stt provider, circuit open", "provider", be.name)
			continue
		}
		slog.Warn("stt provider failed, trying next", "provider", be.name, "err", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// Available reports whether any back end would accept a stream start.
func (f *Failover) Available() bool {
	for _, be := range f.backends {
		if be.breaker.Allow() {
			return true
		}
	}
	return false
}

// States returns each back end's breaker state keyed by name.
func (f *Failover) States() map[string]State {
	out := make(map[string]State, len(f.backends))
	for _, be := range f.backends {
		out[be.name] = be.breaker.State()
	}
	return out
}
