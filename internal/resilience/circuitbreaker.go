// Package resilience provides circuit breaker and provider failover primitives
// for the STT and TTS backends.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open). A
// remote transcription endpoint that keeps timing out is skipped for a while
// instead of adding its timeout to every listen call. [FallbackGroup] composes
// several providers of one kind, each behind its own breaker, and tries them
// in order.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is in
// the open state and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped due to consecutive failures.
	// Calls are rejected immediately with [ErrCircuitOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen is entered once the reset timeout has elapsed. A single
	// probe call is let through; its outcome closes or re-opens the breaker.
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

// CircuitBreakerConfig configures a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines, e.g. "stt/deepgram".
	Name string

	// MaxFailures is the number of consecutive failures that open the
	// breaker. Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before a probe is let
	// through. Default: 30s.
	ResetTimeout time.Duration

	// IsFailure decides whether an error counts against the breaker.
	// Default: every error except context cancellation and deadline expiry.
	IsFailure func(error) bool

	// OnStateChange is called after every transition with the breaker's
	// mutex held. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// CircuitBreaker guards calls to one provider. Audio sessions are
// exclusive, so at most one probe is in flight while half-open.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker. Zero config fields take their
// defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// setState must be called with cb.mu held.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = cb.cfg.Now()
		slog.Warn("circuit breaker opened", "name", cb.cfg.Name,
			"failures", cb.failures, "retry_in", cb.cfg.ResetTimeout)
	case StateClosed:
		slog.Info("circuit breaker closed", "name", cb.cfg.Name)
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// Execute runs fn unless the breaker is open, in which case it returns
// [ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.setState(StateHalfOpen)
	}
	switch {
	case cb.state == StateOpen, cb.state == StateHalfOpen && cb.probing:
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	probe := cb.state == StateHalfOpen
	cb.probing = probe
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}
	switch {
	case err == nil:
		cb.failures = 0
		cb.setState(StateClosed)
	case !cb.cfg.IsFailure(err):
		// Neither success nor failure: a half-open breaker waits for the next
		// probe.
	case probe:
		cb.setState(StateOpen)
	default:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.setState(StateOpen)
		}
	}
	return err
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}
