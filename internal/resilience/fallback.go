package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voicemcp/internal/observe"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup] and the per-entry circuit
// breaker created for each provider in it.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Kind labels provider metrics ("stt", "tts").
	Kind string

	// Metrics receives per-provider request and error counts. Nil disables
	// recording.
	Metrics *observe.Metrics
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails (or its circuit breaker is open), the
// next healthy fallback is tried in registration order.
//
// Entries must be registered before the group is used concurrently.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order they
// are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	if fg.cfg.Kind != "" {
		cbCfg.Name = fg.cfg.Kind + "/" + name
	}
	if m := fg.cfg.Metrics; m != nil {
		kind, next := fg.cfg.Kind, cbCfg.OnStateChange
		cbCfg.OnStateChange = func(breaker string, from, to State) {
			m.RecordBreakerTransition(context.Background(), name, kind, to.String())
			if next != nil {
				next(breaker, from, to)
			}
		}
	}
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in the order they are tried.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Primary returns the first entry.
func (fg *FallbackGroup[T]) Primary() T {
	return fg.entries[0].value
}

// Available reports whether at least one entry's circuit breaker is not
// open.
func (fg *FallbackGroup[T]) Available() bool {
	for i := range fg.entries {
		if fg.entries[i].breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Execute tries fn against each entry in order until one succeeds.
// Circuit-breaker-open entries are skipped. Returns [ErrAllFailed] wrapped with
// the last error if every entry fails.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one succeeds,
// returning both the result value and error. This is a package-level function
// because Go does not support method-level type parameters.
//
// Once ctx is done no further entries are tried and ctx.Err() is returned.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	log := observe.Logger(ctx)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		entry := &fg.entries[i]
		var result R
		start := time.Now()
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			fg.record(ctx, entry.name, "ok")
			if i > 0 {
				log.Info("fallback provider succeeded", "kind", fg.cfg.Kind, "provider", entry.name, "duration", time.Since(start))
			}
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.record(ctx, entry.name, "circuit_open")
			log.Debug("skipping provider (circuit open)", "kind", fg.cfg.Kind, "provider", entry.name)
			continue
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		fg.record(ctx, entry.name, "error")
		log.Warn("provider failed, trying next",
			"kind", fg.cfg.Kind, "provider", entry.name, "error", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

func (fg *FallbackGroup[T]) record(ctx context.Context, provider, status string) {
	if fg.cfg.Metrics == nil {
		return
	}
	fg.cfg.Metrics.RecordProviderRequest(ctx, provider, fg.cfg.Kind, status)
	if status == "error" {
		fg.cfg.Metrics.RecordProviderError(ctx, provider, fg.cfg.Kind)
	}
}
