// Package elevenlabs implements tts.Provider on the ElevenLabs stream-input
// WebSocket API.
//
// One WebSocket carries a whole speak request: the first message
// authenticates and sets the voice, each text fragment follows as its own
// message, and an empty text ends the input. The server answers with
// base64 PCM chunks and a final marker.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultWSBase    = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultVoicesURL = "https://api.elevenlabs.io/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultFormat    = "pcm_24000"
)

// errFinal ends the receive loop once the server marks the stream complete.
var errFinal = errors.New("elevenlabs: final chunk")

// Option configures a [Provider].
type Option func(*Provider)

// WithModel sets the model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the output format. Only raw PCM formats such as
// "pcm_16000" or "pcm_44100" can be played.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.format = format }
}

// WithEndpoints points the provider at another WebSocket base and voices
// URL, e.g. a local fake.
func WithEndpoints(wsBase, voicesURL string) Option {
	return func(p *Provider) {
		p.wsBase = strings.TrimRight(wsBase, "/")
		p.voicesURL = voicesURL
	}
}

// Provider streams speech from ElevenLabs.
type Provider struct {
	apiKey    string
	model     string
	format    string
	rate      int
	wsBase    string
	voicesURL string
	client    *http.Client
}

// New returns a Provider for apiKey. It fails for an empty key or a non-PCM
// output format.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key must not be empty")
	}
	p := &Provider{
		apiKey:    apiKey,
		model:     defaultModel,
		format:    defaultFormat,
		wsBase:    defaultWSBase,
		voicesURL: defaultVoicesURL,
		client:    &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	rate, err := pcmRate(p.format)
	if err != nil {
		return nil, err
	}
	p.rate = rate
	return p, nil
}

func (p *Provider) SampleRate() int { return p.rate }

// pcmRate parses the rate out of a "pcm_<rate>" format.
func pcmRate(format string) (int, error) {
	s, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: output format %q is not PCM", format)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", format)
	}
	return n, nil
}

// wsMessage is one client message. Only the first carries the key and
// settings; an empty Text flushes and ends the input.
type wsMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	APIKey        string         `json:"xi_api_key,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// wsReply is one server message.
type wsReply struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SynthesizeStream dials the stream-input socket for voice and relays text
// fragments to it. Dial and authentication errors are returned directly;
// later failures end the audio channel early and are logged.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice ID must not be empty")
	}
	conn, _, err := websocket.Dial(ctx, p.streamURL(voice), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	// The server rejects an empty first text.
	first := wsMessage{Text: " ", VoiceSettings: settingsFor(voice), APIKey: p.apiKey}
	if err := wsjson.Write(ctx, conn, first); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("elevenlabs: open stream: %w", err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer conn.CloseNow()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return send(gctx, conn, text) })
		g.Go(func() error { return receive(gctx, conn, out) })
		err := g.Wait()
		if errors.Is(err, errFinal) {
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if err != nil && ctx.Err() == nil {
			slog.Warn("elevenlabs: stream ended early", "voice", voice.ID, "err", err)
		}
	}()
	return out, nil
}

// send forwards fragments until text is closed, then flushes.
func send(ctx context.Context, conn *websocket.Conn, text <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-text:
			if !ok {
				return wsjson.Write(ctx, conn, wsMessage{})
			}
			chunk := inputChunk(s)
			if chunk == "" {
				continue
			}
			if err := wsjson.Write(ctx, conn, wsMessage{Text: chunk}); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// receive decodes audio until the final marker, which it reports as
// errFinal so the sender stops too.
func receive(ctx context.Context, conn *websocket.Conn, out chan<- []byte) error {
	for {
		var r wsReply
		if err := wsjson.Read(ctx, conn, &r); err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		if r.Error != "" {
			return fmt.Errorf("server: %s: %s", r.Error, r.Message)
		}
		if r.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(r.Audio)
			if err != nil {
				return fmt.Errorf("decode audio: %w", err)
			}
			select {
			case out <- pcm:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if r.IsFinal {
			return errFinal
		}
	}
}

// inputChunk returns s with the trailing space the API expects, or "" for
// blank input.
func inputChunk(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if !strings.HasSuffix(s, " ") {
		s += " "
	}
	return s
}

func settingsFor(voice tts.VoiceProfile) *voiceSettings {
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if voice.Speed > 0 {
		vs.Speed = min(max(voice.Speed, 0.7), 1.2)
	}
	return vs
}

// streamURL builds the stream-input URL. Only two-letter ISO-639-1 codes are
// passed on; Kokoro's single-letter codes mean nothing here.
func (p *Provider) streamURL(voice tts.VoiceProfile) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.format)
	if len(voice.Language) == 2 {
		q.Set("language_code", voice.Language)
	}
	return p.wsBase + "/" + url.PathEscape(voice.ID) + "/stream-input?" + q.Encode()
}

// ListVoices returns the voices available to the API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.voicesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: list voices: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return decodeVoices(resp.Body)
}

// decodeVoices converts a GET /v1/voices body. Labels and the category end
// up in Metadata.
func decodeVoices(r io.Reader) ([]tts.VoiceProfile, error) {
	var body struct {
		Voices []struct {
			ID       string            `json:"voice_id"`
			Name     string            `json:"name"`
			Category string            `json:"category"`
			Labels   map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}
	profiles := make([]tts.VoiceProfile, 0, len(body.Voices))
	for _, v := range body.Voices {
		meta := maps.Clone(v.Labels)
		if meta == nil {
			meta = map[string]string{}
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.ID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return profiles, nil
}
