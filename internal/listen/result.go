package listen

import (
	"time"

	"github.com/MrWong99/voicemcp/pkg/audio"
)

// Result is a finished recording.
type Result struct {
	// Frames is the utterance buffer in capture order. Empty for
	// [OutcomeNoSpeech].
	Frames []audio.Frame

	// Outcome is the reason the recording ended.
	Outcome Outcome

	// Mode is the mode the recording was made in.
	Mode Mode

	// SampleRate of every frame.
	SampleRate int

	// Duration is the length of the buffered audio.
	Duration time.Duration
}

// Empty reports whether the result holds no audio.
func (r Result) Empty() bool { return len(r.Frames) == 0 }

// Samples concatenates all frames into a single PCM slice.
func (r Result) Samples() []int16 {
	n := 0
	for _, f := range r.Frames {
		n += len(f.Samples)
	}
	out := make([]int16, 0, n)
	for _, f := range r.Frames {
		out = append(out, f.Samples...)
	}
	return out
}

func newResult(frames []audio.Frame, o Outcome, mode Mode, sampleRate int, frameDur time.Duration) Result {
	var d time.Duration
	for _, f := range frames {
		fd := f.Duration()
		if fd == 0 {
			fd = frameDur
		}
		d += fd
	}
	return Result{Frames: frames, Outcome: o, Mode: mode, SampleRate: sampleRate, Duration: d}
}
