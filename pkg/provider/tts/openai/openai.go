// Package openai provides a TTS provider for the OpenAI speech API and for
// servers that implement it, most notably Kokoro-FastAPI. Audio is requested
// as raw 24 kHz PCM, one HTTP call per sentence, with a small lookahead so
// the next sentence is synthesised while the current one plays.
//
// Typical usage (local Kokoro):
//
//	p, err := openai.New("", "kokoro", openai.WithBaseURL("http://localhost:8880/v1/"))
//	audio, err := p.SynthesizeStream(ctx, tts.Text("Hello!"), tts.VoiceProfile{ID: "af_heart", Language: "a"})
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	// DefaultModel is used when New is called with an empty model.
	DefaultModel = "kokoro"

	// SampleRate of the PCM returned by the speech endpoint.
	SampleRate = 24000

	// sentenceLookahead controls how many synthesis requests may be
	// in flight at once.
	sentenceLookahead = 3

	// audioChanBuf is the buffer depth of the returned audio channel.
	audioChanBuf = 64

	// pcmChunkSize is the size of each PCM chunk emitted on the audio channel
	// (100 ms at 24 kHz).
	pcmChunkSize = 4800
)

// Provider implements tts.Provider using the speech endpoint.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
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

// New constructs a speech Provider. apiKey may be empty only when a base URL
// for a self-hosted server is given.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	cfg := &config{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}
	if apiKey == "" && cfg.baseURL == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
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

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return SampleRate }

type audioResult struct {
	pcm []byte
	err error
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("openai tts: voice.ID must not be empty")
	}

	audioCh := make(chan []byte, audioChanBuf)
	sentences := tts.Sentences(ctx, text, sentenceLookahead)

	// resultQueue carries ordered future channels so the collector can drain in order.
	resultQueue := make(chan chan audioResult, sentenceLookahead)
	go func() {
		defer close(resultQueue)
		for {
			select {
			case sentence, ok := <-sentences:
				if !ok {
					return
				}
				ch := make(chan audioResult, 1)
				select {
				case resultQueue <- ch:
				case <-ctx.Done():
					return
				}
				go func(s string, out chan<- audioResult) {
					pcm, err := p.synthesize(ctx, s, voice)
					out <- audioResult{pcm: pcm, err: err}
				}(sentence, ch)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer close(audioCh)
		for {
			select {
			case ch, ok := <-resultQueue:
				if !ok {
					return
				}
				var result audioResult
				select {
				case result = <-ch:
				case <-ctx.Done():
					return
				}
				if result.err != nil {
					return
				}
				pcm := result.pcm
				for len(pcm) > 0 {
					end := min(pcmChunkSize, len(pcm))
					select {
					case audioCh <- pcm[:end]:
					case <-ctx.Done():
						return
					}
					pcm = pcm[end:]
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioCh, nil
}

func (p *Provider) synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	params := oai.AudioSpeechNewParams{
		Input:          text,
		Model:          oai.SpeechModel(p.model),
		Voice:          oai.AudioSpeechNewParamsVoice(voice.ID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if voice.Speed > 0 {
		params.Speed = oai.Float(voice.Speed)
	}
	var reqOpts []option.RequestOption
	if voice.Language != "" {
		// Kokoro-FastAPI extension; OpenAI ignores unknown fields.
		reqOpts = append(reqOpts, option.WithJSONSet("lang_code", voice.Language))
	}

	resp, err := p.client.Audio.Speech.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	return pcm, nil
}

// voicesResponse is the body of GET /audio/voices on Kokoro-FastAPI.
type voicesResponse struct {
	Voices []string `json:"voices"`
}

// ListVoices implements tts.Provider. Servers exposing GET /audio/voices
// (Kokoro-FastAPI) are asked for their catalogue; otherwise the built-in
// Kokoro catalogue is returned.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	var vr voicesResponse
	if err := p.client.Get(ctx, "audio/voices", nil, &vr); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("openai tts: list voices: %w", ctx.Err())
		}
		return KokoroVoices(), nil
	}
	ids := append([]string(nil), vr.Voices...)
	sort.Strings(ids)
	profiles := make([]tts.VoiceProfile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, kokoroProfile(id))
	}
	return profiles, nil
}
