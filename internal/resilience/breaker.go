// Package resilience keeps speech recognition usable when back ends fail.
//
// [Breaker] is a three-state circuit breaker (closed → open → half-open) that
// gates stream starts against one STT back end. [Failover] chains several
// back ends behind breakers and reports availability: when every breaker is
// open the recognizer is unavailable and the voice affordance is disabled.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in logs and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close
	// again. Default: 1.
	Probes int

	// OnStateChange, if set, is called after every transition with the lock
	// released.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	probeWins int
}

// NewBreaker creates a [Breaker]. Zero config fields take their defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Do runs fn unless the breaker rejects the call, and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn()
	b.release(probe, err)
	return err
}

// Allow reports whether a call would currently be let through, without
// reserving a probe slot.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.effectiveLocked() {
	case StateOpen:
		return false
	case StateHalfOpen:
		return b.inFlight < b.cfg.Probes
	}
	return true
}

// State returns the current state. An open breaker whose cool-down elapsed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveLocked()
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures, b.inFlight, b.probeWins = 0, 0, 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) effectiveLocked() State {
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	from := b.state
	switch b.effectiveLocked() {
	case StateOpen:
		b.mu.Unlock()
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if b.state == StateOpen {
			b.state = StateHalfOpen
			b.inFlight, b.probeWins = 0, 0
		}
		if b.inFlight >= b.cfg.Probes {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		b.inFlight++
		probe = true
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return probe, nil
}

func (b *Breaker) release(probe bool, err error) {
	b.mu.Lock()
	from := b.state
	if probe {
		b.inFlight--
	}
	switch {
	case err != nil && (probe || b.state == StateHalfOpen):
		b.tripLocked()
	case err != nil:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.tripLocked()
		}
	case probe:
		b.probeWins++
		if b.probeWins >= b.cfg.Probes {
			b.state = StateClosed
			b.failures, b.probeWins = 0, 0
		}
	default:
		b.failures = 0
	}
	to := b.state
	failures := b.failures
	b.mu.Unlock()

	if from != to {
		switch to {
		case StateOpen:
			slog.Warn("circuit breaker opened", "name", b.cfg.Name, "consecutive_failures", failures)
		case StateClosed:
			slog.Info("circuit breaker closed after successful probes", "name", b.cfg.Name)
		}
	}
	b.notify(from, to)
}

func (b *Breaker) tripLocked() {
	b.state = StateOpen
	b.openedAt = b.cfg.Now()
	b.inFlight, b.probeWins = 0, 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
