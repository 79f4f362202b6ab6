// Package wavfile encodes and decodes 16-bit mono PCM as RIFF/WAVE using
// github.com/go-audio/wav. It is used to upload utterances to HTTP
// transcription backends and to dump recordings for diagnostics.
package wavfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// wavFormatPCM is the WAVE_FORMAT_PCM audio format tag.
const wavFormatPCM = 1

// ErrInvalid is returned by [Decode] when the input is not a WAV stream.
var ErrInvalid = errors.New("wavfile: not a valid WAV stream")

// Encode writes samples as a mono 16-bit WAV stream to w.
func Encode(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("wavfile: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: finalize: %w", err)
	}
	return nil
}

// Bytes returns samples as an in-memory WAV file.
func Bytes(samples []int16, sampleRate int) ([]byte, error) {
	var ws writeSeeker
	if err := Encode(&ws, samples, sampleRate); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// Decode reads a WAV stream and returns its first channel as 16-bit samples
// together with the sample rate.
func Decode(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalid
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wavfile: decode: %w", err)
	}
	ch := max(buf.Format.NumChannels, 1)
	out := make([]int16, 0, len(buf.Data)/ch)
	for i := 0; i < len(buf.Data); i += ch {
		out = append(out, int16(buf.Data[i]))
	}
	return out, buf.Format.SampleRate, nil
}

// Dump writes samples to a timestamped file in dir and returns its path.
// The directory is created if needed.
func Dump(dir string, samples []int16, sampleRate int, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("wavfile: create dump dir: %w", err)
	}
	path := filepath.Join(dir, "utterance-"+at.UTC().Format("20060102T150405.000Z")+".wav")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("wavfile: create %s: %w", path, err)
	}
	if err := Encode(f, samples, sampleRate); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("wavfile: close %s: %w", path, err)
	}
	return path, nil
}

// writeSeeker is an in-memory io.WriteSeeker. The WAV encoder seeks back to
// patch the RIFF and data chunk sizes once all samples are written.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("wavfile: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("wavfile: negative position %d", abs)
	}
	w.pos = int(abs)
	return abs, nil
}
