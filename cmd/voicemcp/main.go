// Command voicemcp is a Model Context Protocol server that gives an AI
// assistant a microphone and a speaker.
//
// It speaks MCP over stdin/stdout, so it is normally launched by an MCP
// client rather than by hand. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicemcp/internal/app"
	"github.com/MrWong99/voicemcp/internal/config"
	"github.com/MrWong99/voicemcp/internal/health"
	"github.com/MrWong99/voicemcp/internal/mcp"
	"github.com/MrWong99/voicemcp/internal/observe"
	"github.com/MrWong99/voicemcp/internal/resilience"
	"github.com/MrWong99/voicemcp/internal/stdio"
	"github.com/MrWong99/voicemcp/pkg/audio/portaudio"
	"github.com/MrWong99/voicemcp/pkg/provider/stt"
	"github.com/MrWong99/voicemcp/pkg/provider/stt/deepgram"
	oaistt "github.com/MrWong99/voicemcp/pkg/provider/stt/openai"
	"github.com/MrWong99/voicemcp/pkg/provider/stt/whisper"
	"github.com/MrWong99/voicemcp/pkg/provider/tts"
	"github.com/MrWong99/voicemcp/pkg/provider/tts/elevenlabs"
	oaitts "github.com/MrWong99/voicemcp/pkg/provider/tts/openai"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
	"github.com/MrWong99/voicemcp/pkg/provider/vad/energy"
	"github.com/MrWong99/voicemcp/pkg/provider/vad/webrtc"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", os.Getenv("VOICEMCP_CONFIG"),
		"path to a YAML configuration file (default: built-in settings)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Fprintln(os.Stderr, "voicemcp", mcp.Version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voicemcp: %v\n", err)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the MCP protocol; logs must never go there.
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("voicemcp starting",
		"version", mcp.Version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// Take a private copy of stdout before any audio code can redirect it.
	protoOut, err := stdio.Duplicate(os.Stdout)
	if err != nil {
		slog.Error("failed to reserve stdout for MCP", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voicemcp",
		ServiceVersion: mcp.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	built, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		closeAll(built.closers)
		return 1
	}

	host, err := portaudio.New()
	if err != nil {
		slog.Error("failed to initialise audio", "err", err)
		closeAll(built.closers)
		return 1
	}
	built.providers.Capturer = host
	built.providers.Player = host

	application, err := app.New(cfg, built.providers,
		app.WithMetrics(metrics),
		app.WithClosers(append(built.closers, host)...),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		closeAll(append(built.closers, host))
		return 1
	}

	server := mcp.NewServer(application,
		mcp.WithMetrics(metrics),
		mcp.WithVoiceDefaults(cfg.Voice),
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	var watcher *config.Watcher
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		}
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	var mcpUp atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The client closing stdin ends the process.
		defer stop()
		mcpUp.Store(true)
		defer mcpUp.Store(false)
		slog.Info("mcp server ready", "transport", "stdio")
		return server.Run(gctx, &mcpsdk.IOTransport{Reader: os.Stdin, Writer: protoOut})
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx, func(r config.Reload) {
				applyReload(r, &level, application)
			})
		})
	}

	if addr := cfg.Server.DiagAddr; addr != "" {
		diag := &http.Server{
			Addr:              addr,
			Handler:           diagHandler(tel, metrics, built, &mcpUp),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("diagnostics server listening", "addr", addr)
			if err := diag.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("diagnostics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return diag.Shutdown(sctx)
		})
	}

	runErr := g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")

	code := 0
	if runErr != nil {
		slog.Error("run error", "err", runErr)
		code = 1
	}
	if err := application.Close(shutdownCtx); err != nil {
		slog.Error("close providers", "err", err)
		code = 1
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", "err", err)
	}
	if protoOut != os.Stdout {
		_ = protoOut.Close()
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires every provider that ships with voicemcp into
// reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []whisper.NativeOption{whisper.WithThreads(entry.IntOption("threads", 0))}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(entry.Model, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, oaistt.WithLanguage(lang))
		}
		return oaistt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := entry.StringOption("output_format", ""); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("webrtc", func(config.VADConfig) (vad.Engine, error) {
		return webrtc.New(), nil
	})
	reg.RegisterVAD("energy", func(config.VADConfig) (vad.Engine, error) {
		return energy.New(), nil
	})

	for _, kind := range []string{"stt", "tts", "vad"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// builtProviders is the result of [buildProviders].
type builtProviders struct {
	providers app.Providers
	stt       *resilience.STTFallback
	tts       *resilience.TTSFallback

	// closers releases providers holding native resources (a loaded whisper
	// model) in creation order.
	closers []io.Closer
}

// buildProviders instantiates the configured STT and TTS chains and the VAD
// engine. Each chain puts the primary first and the fallbacks after it, in
// configuration order. On error the returned closers hold whatever was
// already created.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (builtProviders, error) {
	var b builtProviders

	track := func(p any) {
		if c, ok := p.(io.Closer); ok {
			b.closers = append(b.closers, c)
		}
	}

	sttPrimary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return b, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	track(sttPrimary)
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)
	b.stt = resilience.NewSTTFallback(sttPrimary, cfg.Providers.STT.Name, resilience.FallbackConfig{Metrics: m})
	for _, entry := range cfg.Providers.STTFallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return b, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
		}
		track(p)
		b.stt.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "stt", "name", entry.Name, "fallback", true)
	}

	ttsPrimary, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return b, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	track(ttsPrimary)
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)
	b.tts = resilience.NewTTSFallback(ttsPrimary, cfg.Providers.TTS.Name, resilience.FallbackConfig{Metrics: m})
	for _, entry := range cfg.Providers.TTSFallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return b, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
		}
		track(p)
		b.tts.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "tts", "name", entry.Name, "fallback", true)
	}

	engine, err := reg.CreateVAD(cfg.VAD)
	if err != nil {
		return b, fmt.Errorf("create vad engine %q: %w", cfg.VAD.Name, err)
	}
	slog.Info("provider created", "kind", "vad", "name", cfg.VAD.Name)

	b.providers = app.Providers{STT: b.stt, TTS: b.tts, VAD: engine}
	return b, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			slog.Warn("close provider", "err", err)
		}
	}
}

// ── Hot reload ────────────────────────────────────────────────────────────────

// reconfigurer is the part of the app a reload can change live.
type reconfigurer interface {
	Reconfigure(config.VoiceConfig, config.TranscriptConfig)
}

func applyReload(r config.Reload, level *slog.LevelVar, a reconfigurer) {
	d := r.Diff
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VoiceChanged || d.TranscriptChanged {
		a.Reconfigure(r.New.Voice, r.New.Transcript)
		slog.Info("voice and transcript settings reloaded")
	}
	if d.RestartRequired {
		slog.Warn("config change requires a restart to take effect")
	}
}

// ── Diagnostics ───────────────────────────────────────────────────────────────

func diagHandler(tel *observe.Telemetry, m *observe.Metrics, b builtProviders, mcpUp *atomic.Bool) http.Handler {
	checks := health.New(
		health.Checker{Name: "mcp", Check: func(context.Context) error {
			if !mcpUp.Load() {
				return errors.New("session closed")
			}
			return nil
		}},
		health.Checker{Name: "stt", Check: func(context.Context) error {
			if !b.stt.Available() {
				return errors.New("all circuit breakers open")
			}
			return nil
		}},
		health.Checker{Name: "tts", Check: func(context.Context) error {
			if !b.tts.Available() {
				return errors.New("all circuit breakers open")
			}
			return nil
		}},
	)

	mux := http.NewServeMux()
	checks.Register(mux)
	mux.Handle("GET /metrics", tel.Handler())
	return observe.Middleware(m)(mux)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
