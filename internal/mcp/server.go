// Package mcp exposes the voice operations as Model Context Protocol tools
// over the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
//
// The server is named "voice" and offers three tools:
//
//   - listen: record from the microphone until the user stops talking (or
//     for a fixed number of seconds) and return the transcription.
//   - speak: synthesise text and play it through the speakers, returning
//     once playback has finished.
//   - voices: list the voices of the configured TTS provider.
//
// Operational failures (device busy, microphone missing, provider down) are
// returned as tool results with IsError set so the model can see and react to
// them. Protocol errors are reserved for malformed requests.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/voicemcp/internal/app"
	"github.com/MrWong99/voicemcp/internal/config"
	"github.com/MrWong99/voicemcp/internal/observe"
	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

// ServerName is the implementation name announced during initialisation.
const ServerName = "voice"

// Version is announced during initialisation. Overridden at build time.
var Version = "dev"

// NoSpeech is the listen result when nothing intelligible was heard.
const NoSpeech = "(no speech detected)"

// Service is the set of voice operations the tools call into.
// [app.App] implements it.
type Service interface {
	Listen(ctx context.Context, duration time.Duration) (app.ListenResult, error)
	Speak(ctx context.Context, req app.SpeakRequest) error
	Voices(ctx context.Context) ([]tts.VoiceProfile, error)
}

var _ Service = (*app.App)(nil)

// ListenArgs are the arguments of the listen tool.
type ListenArgs struct {
	Duration float64 `json:"duration,omitempty" jsonschema:"Seconds to record. Omit to record until the user stops speaking."`
}

// SpeakArgs are the arguments of the speak tool.
type SpeakArgs struct {
	Text  string  `json:"text" jsonschema:"The text to say aloud."`
	Voice string  `json:"voice,omitempty" jsonschema:"Voice ID. See the voices tool."`
	Speed float64 `json:"speed,omitempty" jsonschema:"Speaking rate multiplier, 0.5 to 2.0."`
	Lang  string  `json:"lang,omitempty" jsonschema:"Language code of the voice (a, b, e, f, h, i, j, p, z)."`
}

// VoicesArgs are the (empty) arguments of the voices tool.
type VoicesArgs struct{}

// Option is a functional option for [NewServer].
type Option func(*Server)

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithVoiceDefaults sets the defaults advertised in tool descriptions and
// instructions. Defaults to af_heart at 1.0x in American English.
func WithVoiceDefaults(v config.VoiceConfig) Option {
	return func(s *Server) { s.defaults = v }
}

// Server is the voice MCP server.
type Server struct {
	svc      Service
	sdk      *mcpsdk.Server
	metrics  *observe.Metrics
	defaults config.VoiceConfig
}

// NewServer builds the MCP server and registers its tools.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		metrics: observe.DefaultMetrics(),
		defaults: config.VoiceConfig{
			Voice: config.DefaultVoice,
			Speed: config.DefaultSpeed,
			Lang:  config.DefaultLang,
		},
	}
	for _, o := range opts {
		o(s)
	}

	s.sdk = mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: ServerName, Version: Version},
		&mcpsdk.ServerOptions{Instructions: instructions(s.defaults)},
	)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name: "listen",
		Description: "Listen to the user through the microphone and return what they said. " +
			"A tone plays when recording starts and another when it stops. " +
			"Without a duration, recording ends after 1.5 seconds of silence. " +
			"Returns \"" + NoSpeech + "\" when nothing was said.",
	}, s.listen)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name: "speak",
		Description: fmt.Sprintf("Say text aloud through the speakers and wait until playback finishes. "+
			"Defaults: voice %q, speed %.1f, lang %q.", s.defaults.Voice, s.defaults.Speed, s.defaults.Lang),
	}, s.speak)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "voices",
		Description: "List the voices available to the speak tool.",
	}, s.voices)

	return s
}

// SDK returns the underlying SDK server, e.g. to connect additional
// transports.
func (s *Server) SDK() *mcpsdk.Server { return s.sdk }

// Run serves a single session on t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.sdk.Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: run: %w", err)
	}
	return nil
}

// call serves one tool invocation inside a span. Logs written under the
// span's context carry the tool name.
func (s *Server) call(ctx context.Context, tool string, fn func(context.Context) (string, error)) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(observe.WithTool(ctx, tool), "tool "+tool)
	defer span.End()

	text, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(ctx, tool, start, err), nil, nil
	}
	s.metrics.RecordToolCall(ctx, tool, "ok", time.Since(start))
	return textResult(text), nil, nil
}

func (s *Server) listen(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListenArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.call(ctx, "listen", func(ctx context.Context) (string, error) {
		if args.Duration < 0 {
			return "", fmt.Errorf("duration must be positive, got %g", args.Duration)
		}
		res, err := s.svc.Listen(ctx, seconds(args.Duration))
		switch {
		case err != nil:
			return "", err
		case res.NoSpeech || res.Text == "":
			return NoSpeech, nil
		}
		return res.Text, nil
	})
}

// seconds converts a non-negative tool argument to a Duration. Values past
// the Duration range saturate and positive values never round to zero, so a
// fixed-duration request stays one.
func seconds(s float64) time.Duration {
	if s >= math.MaxInt64/float64(time.Second) {
		return math.MaxInt64
	}
	d := time.Duration(s * float64(time.Second))
	if s > 0 && d <= 0 {
		d = 1
	}
	return d
}

func (s *Server) speak(ctx context.Context, _ *mcpsdk.CallToolRequest, args SpeakArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.call(ctx, "speak", func(ctx context.Context) (string, error) {
		if args.Speed != 0 && (args.Speed < 0.5 || args.Speed > 2.0) {
			return "", fmt.Errorf("speed %g is out of range [0.5, 2.0]", args.Speed)
		}
		err := s.svc.Speak(ctx, app.SpeakRequest{
			Text:  args.Text,
			Voice: args.Voice,
			Speed: args.Speed,
			Lang:  args.Lang,
		})
		if err != nil {
			return "", err
		}
		return "Spoke: " + args.Text, nil
	})
}

func (s *Server) voices(ctx context.Context, _ *mcpsdk.CallToolRequest, _ VoicesArgs) (*mcpsdk.CallToolResult, any, error) {
	return s.call(ctx, "voices", func(ctx context.Context) (string, error) {
		voices, err := s.svc.Voices(ctx)
		if err != nil {
			return "", err
		}
		return formatVoices(voices), nil
	})
}

// fail logs err and converts it into an IsError tool result.
func (s *Server) fail(ctx context.Context, tool string, start time.Time, err error) *mcpsdk.CallToolResult {
	status := "error"
	if errors.Is(err, app.ErrBusy) {
		status = "busy"
	}
	s.metrics.RecordToolCall(ctx, tool, status, time.Since(start))
	observe.Logger(ctx).Warn("mcp: tool failed", "status", status, "err", err)

	res := textResult(tool + " failed: " + err.Error())
	res.IsError = true
	return res
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

// formatVoices renders one voice per line: "id: name (language)".
func formatVoices(voices []tts.VoiceProfile) string {
	if len(voices) == 0 {
		return "No voices available."
	}
	var b strings.Builder
	for i, v := range voices {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(v.ID)
		if v.Name != "" && v.Name != v.ID {
			b.WriteString(": ")
			b.WriteString(v.Name)
		}
		if v.Language != "" {
			b.WriteString(" (")
			b.WriteString(v.Language)
			b.WriteByte(')')
		}
	}
	return b.String()
}

func instructions(v config.VoiceConfig) string {
	return fmt.Sprintf(`This server gives you a voice and ears.

Use speak when the user is talking to you by voice or asked for spoken replies: say short, conversational sentences and keep code, tables, and long lists in your text output instead. Call listen right after speak when you expect an answer.

listen transcribes these languages: ar, de, en, es, fr, hi, it, ja, ko, nl, pt, ru, zh.
speak language codes: a (American English), b (British English), e (Spanish), f (French), h (Hindi), i (Italian), j (Japanese), p (Brazilian Portuguese), z (Mandarin Chinese). Pick a voice whose prefix matches the language, e.g. "ef_dora" with lang "e".

Default voice: %s at %.1fx, lang %q. Only one listen or speak runs at a time; a second call while audio is in use fails and should be retried after the first finishes.`,
		v.Voice, v.Speed, v.Lang)
}
