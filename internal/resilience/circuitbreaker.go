// Package resilience wraps remote providers in circuit breakers and
// failover groups. A [CircuitBreaker] trips after a run of consecutive
// failures so callers stop waiting on a dead endpoint; a [FallbackGroup]
// chains several providers of the same type and routes around entries
// whose breaker is open. Everything here is safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the call when a breaker has
// tripped and its reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects every call with [ErrCircuitOpen].
	StateOpen
	// StateHalfOpen admits a bounded number of probe calls after the reset
	// timeout. Enough successes close the breaker; one failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
	defaultHalfOpenMax  = 3
)

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take the
// package defaults (5 failures, 30s reset, 3 probes).
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output.
	Name string
	// MaxFailures is the consecutive-failure count that opens the breaker.
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
	// HalfOpenMax bounds the number of probe calls while half-open.
	HalfOpenMax int
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = defaultMaxFailures
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = defaultResetTimeout
	}
	if c.HalfOpenMax <= 0 {
		c.HalfOpenMax = defaultHalfOpenMax
	}
}

// CircuitBreaker is a three-state breaker: closed until MaxFailures
// consecutive errors, then open for ResetTimeout, then half-open while
// probe calls decide whether to close again.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	log *slog.Logger

	mu       sync.Mutex
	state    State
	fails    int // consecutive failures while closed
	openedAt time.Time
	probes   int // calls admitted while half-open
}

// NewCircuitBreaker builds a closed breaker from cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg.applyDefaults()
	return &CircuitBreaker{
		cfg: cfg,
		log: slog.With("breaker", cfg.Name),
	}
}

// Execute runs fn unless the breaker refuses the call, in which case it
// returns [ErrCircuitOpen] and fn is never invoked. fn's error is passed
// through unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

// admit decides whether a call may proceed and reports whether it counts
// as a half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.log.Info("circuit breaker transitioning to half-open")
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err != nil && probe:
		// A single failed probe re-opens the breaker.
		cb.openedAt = time.Now()
		cb.state = StateOpen
		cb.fails = cb.cfg.MaxFailures
		cb.log.Warn("circuit breaker re-opened from half-open")
	case err != nil:
		cb.openedAt = time.Now()
		cb.fails++
		if cb.fails >= cb.cfg.MaxFailures && cb.state == StateClosed {
			cb.state = StateOpen
			cb.log.Warn("circuit breaker opened", "consecutive_failures", cb.fails)
		}
	case probe:
		// A failed probe would have re-opened the breaker, so probes counts
		// successes here. Close once the probe budget is spent.
		if cb.state == StateHalfOpen && cb.probes >= cb.cfg.HalfOpenMax {
			cb.state = StateClosed
			cb.fails = 0
			cb.log.Info("circuit breaker closed after successful probes")
		}
	default:
		cb.fails = 0
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout
// has elapsed reports [StateHalfOpen]; the stored state flips on the next
// Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.fails = 0
	cb.probes = 0
	cb.log.Info("circuit breaker manually reset")
}
