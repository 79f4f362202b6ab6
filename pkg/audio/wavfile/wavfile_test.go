package wavfile_test

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicemcp/pkg/audio/wavfile"
)

func sampleRamp(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16((i*97)%20000 - 10000)
	}
	return s
}

func TestBytes_Decode(t *testing.T) {
	t.Parallel()

	in := sampleRamp(1600)
	data, err := wavfile.Bytes(in, 16000)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !strings.HasPrefix(string(data), "RIFF") {
		t.Fatalf("missing RIFF header: %q", data[:4])
	}
	if len(data) < 2*len(in) {
		t.Fatalf("encoded length %d shorter than payload %d", len(data), 2*len(in))
	}

	got, rate, err := wavfile.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rate != 16000 {
		t.Errorf("sample rate: got %d, want 16000", rate)
	}
	if !slices.Equal(got, in) {
		t.Errorf("samples differ after decode (len got %d, want %d)", len(got), len(in))
	}
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	_, _, err := wavfile.Decode(bytes.NewReader([]byte("definitely not a wav file, just text")))
	if err == nil {
		t.Fatal("expected error for non-WAV input")
	}
}

func TestDump(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "dumps")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := wavfile.Dump(dir, sampleRamp(480), 16000, at)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("dump dir: got %s, want %s", filepath.Dir(path), dir)
	}
	if !strings.Contains(filepath.Base(path), "20260304T050607") {
		t.Errorf("file name %q lacks timestamp", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open dump: %v", err)
	}
	defer f.Close()
	got, _, err := wavfile.Decode(f)
	if err != nil {
		t.Fatalf("Decode dump: %v", err)
	}
	if len(got) != 480 {
		t.Fatalf("dump samples: got %d, want 480", len(got))
	}
}
