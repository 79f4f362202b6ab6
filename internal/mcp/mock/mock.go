// Package mock provides an in-memory test double for the [mcp.Service]
// interface.
//
// [Service] records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. It is safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	svc := &mock.Service{ListenResult: app.ListenResult{Text: "deploy it"}}
//	srv := mcp.NewServer(svc)
//
//	if got := svc.CallCount("Listen"); got != 1 {
//	    t.Errorf("expected 1 Listen call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voicemcp/internal/app"
	"github.com/MrWong99/voicemcp/internal/observe"
	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any

	// Tool is the tool name the context was tagged with.
	Tool string
}

// Service is a configurable test double for mcp.Service.
type Service struct {
	mu sync.Mutex

	calls []Call

	// ListenResult is returned by Listen when ListenErr is nil.
	ListenResult app.ListenResult
	ListenErr    error

	// SpeakErr is returned by Speak.
	SpeakErr error

	// VoicesResult is returned by Voices when VoicesErr is nil.
	VoicesResult []tts.VoiceProfile
	VoicesErr    error
}

func (s *Service) record(ctx context.Context, method string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Args: args, Tool: observe.Tool(ctx)})
}

// Listen records the call and returns ListenResult, ListenErr.
func (s *Service) Listen(ctx context.Context, d time.Duration) (app.ListenResult, error) {
	s.record(ctx, "Listen", d)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListenErr != nil {
		return app.ListenResult{}, s.ListenErr
	}
	return s.ListenResult, nil
}

// Speak records the call and returns SpeakErr.
func (s *Service) Speak(ctx context.Context, req app.SpeakRequest) error {
	s.record(ctx, "Speak", req)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SpeakErr
}

// Voices records the call and returns VoicesResult, VoicesErr.
func (s *Service) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	s.record(ctx, "Voices")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VoicesResult, s.VoicesErr
}

// Calls returns a copy of every recorded call in order.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times method was called.
func (s *Service) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
