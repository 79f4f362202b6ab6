package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for breaker tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errTest = errors.New("provider unavailable")

func fail() error    { return errTest }
func succeed() error { return nil }

// tripped returns a breaker that has just opened after MaxFailures failures.
func tripped(t *testing.T, clock *fakeClock) *CircuitBreaker {
	t.Helper()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "stt/deepgram",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		Now:          clock.Now,
	})
	for range 2 {
		_ = cb.Execute(fail)
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("setup: state = %v, want open", got)
	}
	return cb
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.cfg.MaxFailures != 3 {
		t.Errorf("MaxFailures = %d, want 3", cb.cfg.MaxFailures)
	}
	if cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.cfg.ResetTimeout)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Counting(t *testing.T) {
	tests := []struct {
		name  string
		calls []func() error
		want  State
	}{
		{"no calls", nil, StateClosed},
		{"below threshold", []func() error{fail, fail}, StateClosed},
		{"at threshold", []func() error{fail, fail, fail}, StateOpen},
		{"success resets count", []func() error{fail, fail, succeed, fail, fail}, StateClosed},
		{"success after reset still counts", []func() error{fail, succeed, fail, fail, fail}, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, Now: clock.Now})
			for _, call := range tt.calls {
				_ = cb.Execute(call)
			}
			if got := cb.State(); got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn called while breaker open")
	}

	clock.Advance(59 * time.Second)
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("before reset timeout: err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_Probe(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{"success closes", succeed, StateClosed},
		{"failure reopens", fail, StateOpen},
		{"cancellation stays half-open", func() error { return context.Canceled }, StateHalfOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cb := tripped(t, clock)
			clock.Advance(time.Minute)

			if got := cb.State(); got != StateHalfOpen {
				t.Fatalf("after timeout: state = %v, want half-open", got)
			}
			_ = cb.Execute(tt.probe)
			if got := cb.State(); got != tt.want {
				t.Errorf("after probe: state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_FailedProbeRestartsTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)

	clock.Advance(2 * time.Minute)
	_ = cb.Execute(fail)

	clock.Advance(30 * time.Second)
	if got := cb.State(); got != StateOpen {
		t.Errorf("30s after failed probe: state = %v, want open", got)
	}
	clock.Advance(30 * time.Second)
	if got := cb.State(); got != StateHalfOpen {
		t.Errorf("60s after failed probe: state = %v, want half-open", got)
	}
}

func TestCircuitBreaker_SingleProbeInFlight(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)
	clock.Advance(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during probe: err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := cb.Execute(succeed); err != nil {
		t.Errorf("after successful probe: %v", err)
	}
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	_ = cb.Execute(func() error { return context.Canceled })
	_ = cb.Execute(func() error { return fmt.Errorf("listen: %w", context.DeadlineExceeded) })
	if got := cb.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestCircuitBreaker_CustomIsFailure(t *testing.T) {
	errBadAudio := errors.New("bad audio")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, errBadAudio) },
	})

	if err := cb.Execute(func() error { return errBadAudio }); !errors.Is(err, errBadAudio) {
		t.Errorf("err = %v, want errBadAudio", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("after ignored error: state = %v, want closed", got)
	}
	_ = cb.Execute(fail)
	if got := cb.State(); got != StateOpen {
		t.Errorf("after counted error: state = %v, want open", got)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	type change struct {
		name     string
		from, to State
	}
	var changes []change
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "tts/elevenlabs",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          clock.Now,
		OnStateChange: func(name string, from, to State) {
			changes = append(changes, change{name, from, to})
		},
	})

	_ = cb.Execute(fail)
	clock.Advance(time.Second)
	_ = cb.Execute(succeed)

	want := []change{
		{"tts/elevenlabs", StateClosed, StateOpen},
		{"tts/elevenlabs", StateOpen, StateHalfOpen},
		{"tts/elevenlabs", StateHalfOpen, StateClosed},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
