// NativeProvider needs the whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) at link time, found via LIBRARY_PATH and
// C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider runs a whisper.cpp model in-process through the CGO
// bindings. The model is loaded once; every Transcribe call gets its own
// inference context, and calls are serialised because a single inference
// already uses every configured thread.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	threads  uint
	sem      *semaphore.Weighted
}

// NativeOption configures a [NativeProvider].
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the default ISO-639-1 language. "auto" lets a
// multilingual model detect it. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithThreads sets the number of CPU threads per inference. Zero keeps the
// bindings' default.
func WithThreads(n int) NativeOption {
	return func(p *NativeProvider) {
		if n > 0 {
			p.threads = uint(n)
		}
	}
}

// NewNative loads the ggml model at modelPath. Call Close when done.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	p := &NativeProvider{language: defaultLanguage, sem: semaphore.NewWeighted(1)}
	for _, o := range opts {
		o(p)
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if p.language == "auto" && !model.IsMultilingual() {
		slog.Warn("whisper: model is English-only, language detection disabled", "model", modelPath)
		p.language = defaultLanguage
	}
	p.model = model
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// Transcribe runs inference on the calling goroutine. It waits for any
// running inference first; ctx can abort that wait but not the inference
// itself.
func (p *NativeProvider) Transcribe(ctx context.Context, u stt.Utterance) (stt.Transcript, error) {
	if len(u.Samples) == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	defer p.sem.Release(1)

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	lang := pickLanguage(u, p.language)
	if lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			slog.Warn("whisper: language rejected, using model default", "language", lang, "err", err)
		}
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if prompt := initialPrompt(u); prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(prepareSamples(u), nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}
	text, err := joinSegments(wctx)
	if err != nil {
		return stt.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if lang == "auto" {
		lang = wctx.DetectedLanguage()
	}
	return stt.Transcript{Text: text, Language: lang}, nil
}

type segmentReader interface {
	NextSegment() (whisperlib.Segment, error)
}

// joinSegments reads segments until io.EOF and joins their trimmed text.
func joinSegments(r segmentReader) (string, error) {
	var parts []string
	for {
		seg, err := r.NextSegment()
		if errors.Is(err, io.EOF) {
			return strings.Join(parts, " "), nil
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
}
