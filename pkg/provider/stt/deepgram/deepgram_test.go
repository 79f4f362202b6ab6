package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		utt  stt.Utterance
		want map[string][]string
	}{
		{
			name: "defaults",
			utt:  stt.Utterance{SampleRate: 16000},
			want: map[string][]string{
				"model": {"nova-3"}, "language": {"en"}, "punctuate": {"true"},
				"encoding": {"linear16"}, "sample_rate": {"16000"}, "channels": {"1"},
				"keywords": nil,
			},
		},
		{
			name: "options",
			opts: []Option{WithModel("base"), WithLanguage("de-DE")},
			utt:  stt.Utterance{SampleRate: 48000},
			want: map[string][]string{"model": {"base"}, "language": {"de-DE"}, "sample_rate": {"48000"}},
		},
		{
			name: "utterance language wins",
			opts: []Option{WithLanguage("en")},
			utt:  stt.Utterance{Language: "fr-FR", SampleRate: 16000},
			want: map[string][]string{"language": {"fr-FR"}},
		},
		{
			name: "keywords boosted",
			utt:  stt.Utterance{SampleRate: 16000, Keywords: []string{"Kubernetes", "gRPC"}},
			want: map[string][]string{"keywords": {"Kubernetes:2", "gRPC:2"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New("key", tt.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			raw, err := p.buildURL(tt.utt)
			if err != nil {
				t.Fatalf("buildURL: %v", err)
			}
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			q := u.Query()
			for key, want := range tt.want {
				if got := q[key]; !slices.Equal(got, want) {
					t.Errorf("%s = %q, want %q", key, got, want)
				}
			}
		})
	}
}

// ---- JSON parsing tests ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": true,
		"channel": {
			"alternatives": [{
				"transcript": "Hello world",
				"confidence": 0.95,
				"words": [
					{"word": "Hello", "start": 0.1, "end": 0.5, "confidence": 0.97},
					{"word": "world", "start": 0.6, "end": 1.0, "confidence": 0.93}
				]
			}]
		}
	}`)

	tr, isFinal, ok := parseDeepgramResponse(raw)
	if !ok {
		t.Fatal("expected ok=true for valid Results message")
	}
	if !isFinal {
		t.Error("expected isFinal=true")
	}
	assertEqual(t, "text", "Hello world", tr.Text)
	if tr.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", tr.Confidence)
	}
	if len(tr.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(tr.Words))
	}
	assertEqual(t, "word[0]", "Hello", tr.Words[0].Word)
	if tr.Words[0].Start != time.Duration(0.1*float64(time.Second)) {
		t.Errorf("unexpected start: %v", tr.Words[0].Start)
	}
}

func TestParseDeepgramResponse_Partial(t *testing.T) {
	raw := []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"Hello","confidence":0.7,"words":[]}]}}`)

	tr, isFinal, ok := parseDeepgramResponse(raw)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if isFinal {
		t.Error("expected isFinal=false for partial result")
	}
	assertEqual(t, "text", "Hello", tr.Text)
}

func TestParseDeepgramResponse_Ignored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"metadata", `{"type":"Metadata","request_id":"abc"}`},
		{"empty alternatives", `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`},
		{"invalid JSON", `{invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := parseDeepgramResponse([]byte(tt.raw)); ok {
				t.Error("expected ok=false")
			}
		})
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
	assertEqual(t, "endpoint", deepgramEndpoint, p.endpoint)
}

// ---- Transcribe against a fake server ----

// fakeDeepgram accepts one WebSocket connection, counts the audio bytes it
// receives, and answers CloseStream with the scripted messages.
type fakeDeepgram struct {
	mu        sync.Mutex
	audio     int
	auth      string
	responses []string
}

func (f *fakeDeepgram) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				f.mu.Lock()
				f.audio += len(msg)
				f.mu.Unlock()
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				break
			}
		}
		for _, resp := range f.responses {
			if err := conn.Write(ctx, websocket.MessageText, []byte(resp)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

func TestTranscribe_JoinsFinals(t *testing.T) {
	fake := &fakeDeepgram{responses: []string{
		`{"type":"Metadata"}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"turn","confidence":0.5}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"turn on","confidence":0.8}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"the lights","confidence":0.6}]}}`,
	}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	samples := make([]int16, 4000)
	tr, err := p.Transcribe(ctx, stt.Utterance{Samples: samples, SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "turn on the lights", tr.Text)
	if tr.Confidence < 0.69 || tr.Confidence > 0.71 {
		t.Errorf("confidence = %f; want 0.7", tr.Confidence)
	}
	assertEqual(t, "language", "en", tr.Language)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.audio != len(samples)*2 {
		t.Errorf("server received %d audio bytes; want %d", fake.audio, len(samples)*2)
	}
	assertEqual(t, "auth", "Token secret", fake.auth)
}

func TestTranscribe_NoFinals(t *testing.T) {
	fake := &fakeDeepgram{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := p.Transcribe(ctx, stt.Utterance{Samples: make([]int16, 160), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "" {
		t.Errorf("text = %q; want empty", tr.Text)
	}
}

func TestTranscribe_EmptyUtterance(t *testing.T) {
	p, _ := New("key")
	_, err := p.Transcribe(context.Background(), stt.Utterance{SampleRate: 16000})
	if !errors.Is(err, stt.ErrEmptyUtterance) {
		t.Fatalf("err = %v; want ErrEmptyUtterance", err)
	}
}

func TestTranscribe_DialFailure(t *testing.T) {
	p, _ := New("key", WithEndpoint("ws://127.0.0.1:1/v1/listen"))
	_, err := p.Transcribe(context.Background(), stt.Utterance{Samples: make([]int16, 160), SampleRate: 16000})
	if err == nil {
		t.Fatal("expected dial error")
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
