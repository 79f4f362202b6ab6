// Package deepgram provides a Deepgram-backed STT provider. Each utterance is
// pushed through the Deepgram live WebSocket API: the audio is sent in binary
// chunks, the stream is closed, and the final results are joined. It
// implements the stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkBytes is the size of each binary audio message (100 ms at 16 kHz).
	chunkBytes = 3200

	// defaultKeywordBoost is applied to vocabulary hints.
	defaultKeywordBoost = 2
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the WebSocket endpoint. Intended for tests and
// self-hosted deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram live API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcript, error) {
	if len(u.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}

	wsURL, err := p.buildURL(u)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	// The reader runs concurrently so Deepgram never blocks on a full
	// outbound buffer while we are still sending.
	type readResult struct {
		tr  stt.Transcript
		err error
	}
	results := make(chan readResult, 1)
	go func() {
		tr, err := readFinals(ctx, conn)
		results <- readResult{tr, err}
	}()

	pcm := audio.Int16ToBytes(u.Samples)
	for off := 0; off < len(pcm); off += chunkBytes {
		end := min(off+chunkBytes, len(pcm))
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return stt.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: close stream: %w", err)
	}

	select {
	case r := <-results:
		if r.err != nil {
			return stt.Transcript{}, r.err
		}
		if r.tr.Language == "" {
			r.tr.Language = p.pickLanguage(u)
		}
		conn.Close(websocket.StatusNormalClosure, "done")
		return r.tr, nil
	case <-ctx.Done():
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", ctx.Err())
	}
}

// readFinals collects final results until the server closes the connection.
func readFinals(ctx context.Context, conn *websocket.Conn) (stt.Transcript, error) {
	var (
		parts  []string
		words  []stt.WordDetail
		conf   float64
		finals int
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctx.Err() != nil {
				return stt.Transcript{}, fmt.Errorf("deepgram: %w", ctx.Err())
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}

		tr, isFinal, ok := parseDeepgramResponse(msg)
		if !ok || !isFinal {
			continue
		}
		finals++
		if text := strings.TrimSpace(tr.Text); text != "" {
			parts = append(parts, text)
		}
		words = append(words, tr.Words...)
		conf += tr.Confidence
	}

	out := stt.Transcript{Text: strings.Join(parts, " "), Words: words}
	if finals > 0 {
		out.Confidence = conf / float64(finals)
	}
	return out, nil
}

func (p *Provider) pickLanguage(u stt.Utterance) string {
	if u.Language != "" {
		return u.Language
	}
	return p.language
}

// buildURL constructs the Deepgram endpoint URL for the given utterance.
func (p *Provider) buildURL(u stt.Utterance) (string, error) {
	parsed, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := parsed.Query()
	q.Set("model", p.model)
	q.Set("language", p.pickLanguage(u))
	q.Set("punctuate", "true")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("sample_rate", strconv.Itoa(u.SampleRate))

	for _, kw := range u.Keywords {
		// Deepgram keyword format: word:boost (e.g., "Kubernetes:2")
		q.Add("keywords", fmt.Sprintf("%s:%d", kw, defaultKeywordBoost))
	}

	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message. ok is false
// when the message should be ignored.
func parseDeepgramResponse(data []byte) (tr stt.Transcript, isFinal, ok bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, false, false
	}
	if resp.Type != "Results" {
		return stt.Transcript{}, false, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	return stt.Transcript{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Words:      words,
	}, resp.IsFinal, true
}
