// Package mock provides scripted vad engines for tests.
//
//	sess := &mock.Session{Script: []mock.Result{{Event: vad.Event{Speech: true}}}}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/MrWong99/voicemcp/pkg/provider/vad"
)

// Engine hands out Session, or a fresh silent [Session] when it is nil.
type Engine struct {
	Session vad.SessionHandle

	// Err fails NewSession.
	Err error

	mu      sync.Mutex
	configs []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	switch {
	case e.Err != nil:
		return nil, e.Err
	case e.Session != nil:
		return e.Session, nil
	}
	return &Session{}, nil
}

// Configs returns the config of every NewSession call, in order.
func (e *Engine) Configs() []vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vad.Config(nil), e.configs...)
}

// Result is one ProcessFrame outcome.
type Result struct {
	Event vad.Event
	Err   error
}

// Session answers ProcessFrame from Script, then with Then for every frame
// after the script runs out.
type Session struct {
	Script []Result
	Then   Result

	CloseErr error

	mu       sync.Mutex
	received [][]byte
	closes   int
}

var _ vad.SessionHandle = (*Session)(nil)

func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Then
	if n := len(s.received); n < len(s.Script) {
		r = s.Script[n]
	}
	s.received = append(s.received, append([]byte(nil), frame...))
	return r.Event, r.Err
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.CloseErr
}

// Received returns copies of the frames passed to ProcessFrame.
func (s *Session) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
