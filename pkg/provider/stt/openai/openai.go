// Package openai provides an STT provider backed by the OpenAI audio
// transcriptions API. Any server that speaks the same API (speaches,
// faster-whisper-server, LocalAI) works through WithBaseURL.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voicemcp/pkg/audio/wavfile"
	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

// DefaultModel is the default transcription model.
const DefaultModel = string(oai.AudioModelWhisper1)

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI transcriptions endpoint.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
	language   string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithLanguage sets the default ISO-639-1 language hint. Empty lets the
// server detect the language.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries failed requests.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new transcription Provider. apiKey may be empty only
// when a base URL for a self-hosted server is given. If model is empty,
// DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	cfg := &config{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}
	if apiKey == "" && cfg.baseURL == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
	}, nil
}

// ModelID returns the configured model name.
func (p *Provider) ModelID() string {
	return p.model
}

// Transcribe implements stt.Provider. The utterance is uploaded as a WAV
// file at its native sample rate.
func (p *Provider) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcript, error) {
	if len(u.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}
	wav, err := wavfile.Bytes(u.Samples, u.SampleRate)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	lang := u.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		params.Language = oai.String(lang)
	}
	if len(u.Keywords) > 0 {
		params.Prompt = oai.String(strings.Join(u.Keywords, ", "))
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return stt.Transcript{Text: strings.TrimSpace(resp.Text), Language: lang}, nil
}
