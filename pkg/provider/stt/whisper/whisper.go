// Package whisper provides whisper.cpp-backed STT providers.
//
// Two variants are available:
//
//   - [Provider] talks to a running whisper-server binary over its REST API
//     (POST /inference), uploading each utterance as a WAV file.
//   - [NativeProvider] links whisper.cpp through CGO and runs inference
//     in-process on a model loaded once at startup.
//
// Both are batch engines: they receive a finished utterance and return its
// text.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	tr, err := p.Transcribe(ctx, stt.Utterance{Samples: pcm, SampleRate: 16000})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voicemcp/pkg/audio/wavfile"
	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 60 * time.Second
)

var _ stt.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel names the model the server should use (e.g., "base.en"). By
// default the server keeps the model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default ISO-639-1 language. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the HTTP client, which otherwise times out after
// 60 s.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider transcribes through a whisper-server instance.
type Provider struct {
	endpoint string
	model    string
	language string
	client   *http.Client
}

// New returns a Provider for the server at baseURL
// (e.g., "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	p := &Provider{
		endpoint: strings.TrimRight(baseURL, "/") + "/inference",
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads the utterance as WAV at its own sample rate; the server
// resamples.
func (p *Provider) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcript, error) {
	if len(u.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}
	lang := pickLanguage(u, p.language)
	body, contentType, err := p.form(u, lang)
	if err != nil {
		return stt.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := p.client.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: inference request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	var out struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: decode response: %w", err)
	}
	if out.Error != "" {
		return stt.Transcript{}, fmt.Errorf("whisper: server: %s", out.Error)
	}
	return stt.Transcript{Text: strings.TrimSpace(out.Text), Language: lang}, nil
}

// form encodes the multipart body of POST /inference. Empty fields are left
// out so the server applies its own defaults.
func (p *Provider) form(u stt.Utterance, lang string) (*bytes.Buffer, string, error) {
	wav, err := wavfile.Bytes(u.Samples, u.SampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("whisper: %w", err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err == nil {
		_, err = fw.Write(wav)
	}
	for _, f := range [][2]string{
		{"response_format", "json"},
		{"language", lang},
		{"model", p.model},
		{"prompt", initialPrompt(u)},
	} {
		if err == nil && f[1] != "" {
			err = mw.WriteField(f[0], f[1])
		}
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return nil, "", fmt.Errorf("whisper: encode form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
