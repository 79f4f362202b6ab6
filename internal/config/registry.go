package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
	"github.com/MrWong99/voicemcp/pkg/provider/tts"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by the Create methods for a name no
// factory was registered under.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is the name→constructor table of one provider kind. The caller
// holds the registry lock.
type factories[C, P any] map[string]func(C) (P, error)

func (f factories[C, P]) create(kind, name string, cfg C) (P, error) {
	factory, ok := f[name]
	if !ok {
		var zero P
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, name)
	}
	return factory(cfg)
}

// Registry resolves provider names from the config file to constructors.
// Built-in providers are registered by the binary at startup; tests register
// mocks. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt factories[ProviderEntry, stt.Provider]
	tts factories[ProviderEntry, tts.Provider]
	vad factories[VADConfig, vad.Engine]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: factories[ProviderEntry, stt.Provider]{},
		tts: factories[ProviderEntry, tts.Provider]{},
		vad: factories[VADConfig, vad.Engine]{},
	}
}

// RegisterSTT registers factory under name, replacing any earlier one.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	r.stt[name] = factory
	r.mu.Unlock()
}

func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	r.tts[name] = factory
	r.mu.Unlock()
}

func (r *Registry) RegisterVAD(name string, factory func(VADConfig) (vad.Engine, error)) {
	r.mu.Lock()
	r.vad[name] = factory
	r.mu.Unlock()
}

// CreateSTT builds the STT provider named by entry.Name. It returns an error
// wrapping [ErrProviderNotRegistered] for unknown names.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create("stt", entry.Name, entry)
}

func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create("tts", entry.Name, entry)
}

func (r *Registry) CreateVAD(cfg VADConfig) (vad.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vad.create("vad", cfg.Name, cfg)
}

// Names returns the sorted names registered for kind ("stt", "tts" or
// "vad"), or nil for any other kind.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "stt":
		return slices.Sorted(maps.Keys(r.stt))
	case "tts":
		return slices.Sorted(maps.Keys(r.tts))
	case "vad":
		return slices.Sorted(maps.Keys(r.vad))
	}
	return nil
}
