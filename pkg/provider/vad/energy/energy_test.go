package energy_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
	"github.com/MrWong99/voicemcp/pkg/provider/vad/energy"
)

func constFrame(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestSession_Classify(t *testing.T) {
	t.Parallel()

	sess := energy.NewSession(0)
	if sess.Threshold() != vad.DefaultEnergyThreshold {
		t.Fatalf("threshold: got %v, want %v", sess.Threshold(), vad.DefaultEnergyThreshold)
	}

	tests := []struct {
		name   string
		level  int16
		speech bool
	}{
		{"silence", 0, false},
		{"quiet", 500, false},        // ~0.015
		{"loud", 3277, true},         // ~0.1
		{"at threshold", 983, false}, // 983/32768 < 0.03
	}
	for _, tt := range tests {
		got := sess.Classify(constFrame(480, tt.level))
		if got.Speech != tt.speech {
			t.Errorf("%s: speech got %v, want %v (score %v)", tt.name, got.Speech, tt.speech, got.Score)
		}
	}
}

func TestEngine_FrameSize(t *testing.T) {
	t.Parallel()

	h, err := energy.New().NewSession(vad.Config{SampleRate: 16000, FrameSizeMs: 30})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer h.Close()

	if _, err := h.ProcessFrame(make([]byte, 100)); !errors.Is(err, vad.ErrFrameSize) {
		t.Fatalf("short frame: got %v, want ErrFrameSize", err)
	}
	ev, err := h.ProcessFrame(audio.Int16ToBytes(constFrame(480, 8000)))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if !ev.Speech {
		t.Fatal("loud frame classified as silence")
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := energy.New().NewSession(vad.Config{SampleRate: 16000}); err == nil {
		t.Fatal("expected error for zero frame size")
	}
}
