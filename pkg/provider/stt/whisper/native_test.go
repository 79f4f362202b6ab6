package whisper

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

type fakeSegments struct {
	texts []string
	err   error
}

func (f *fakeSegments) NextSegment() (whisperlib.Segment, error) {
	if len(f.texts) == 0 {
		if f.err != nil {
			return whisperlib.Segment{}, f.err
		}
		return whisperlib.Segment{}, io.EOF
	}
	s := whisperlib.Segment{Text: f.texts[0]}
	f.texts = f.texts[1:]
	return s, nil
}

func TestJoinSegments(t *testing.T) {
	tests := []struct {
		name    string
		in      *fakeSegments
		want    string
		wantErr bool
	}{
		{"none", &fakeSegments{}, "", false},
		{"trims and joins", &fakeSegments{texts: []string{" Deploy the", " staging cluster. "}}, "Deploy the staging cluster.", false},
		{"skips blank", &fakeSegments{texts: []string{" ", "ok"}}, "ok", false},
		{"read error", &fakeSegments{texts: []string{"half"}, err: errors.New("decoder")}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := joinSegments(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewNative_BadPath(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/ggml-base.en.bin"} {
		if _, err := NewNative(path); err == nil {
			t.Errorf("NewNative(%q): expected error", path)
		}
	}
}

// nativeModel loads the model named by WHISPER_MODEL_PATH or skips.
func nativeModel(t *testing.T, opts ...NativeOption) *NativeProvider {
	t.Helper()
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	p, err := NewNative(path, opts...)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNativeTranscribe(t *testing.T) {
	p := nativeModel(t, WithThreads(2))
	second := stt.Utterance{Samples: make([]int16, 16000), SampleRate: 16000}

	if _, err := p.Transcribe(context.Background(), stt.Utterance{SampleRate: 16000}); !errors.Is(err, stt.ErrEmptyUtterance) {
		t.Errorf("empty: err = %v, want ErrEmptyUtterance", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, second); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v, want context.Canceled", err)
	}

	// Silence may come back empty or as a filler token; it must not fail.
	if _, err := p.Transcribe(context.Background(), second); err != nil {
		t.Errorf("silence: %v", err)
	}
}
