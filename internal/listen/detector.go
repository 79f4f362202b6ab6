package listen

import (
	"errors"

	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/vad"
	"github.com/MrWong99/voicemcp/pkg/provider/vad/energy"
)

// Classification is the per-frame verdict of a [Detector].
type Classification int

const (
	// Silence means the frame carries no voice activity.
	Silence Classification = iota

	// Speech means the frame carries voice activity.
	Speech

	// DetectorError means the frame could not be classified. The recorder
	// treats it exactly like Silence.
	DetectorError
)

// String returns the metric label for c.
func (c Classification) String() string {
	switch c {
	case Silence:
		return "silence"
	case Speech:
		return "speech"
	case DetectorError:
		return "detector_error"
	default:
		return "unknown"
	}
}

// Detector paths, reported as the "path" metric attribute.
const (
	PathPrimary  = "primary"
	PathEnergy   = "energy"
	PathRejected = "rejected"
)

// Detector classifies frames using a primary VAD session and falls back to an
// RMS energy gate when the primary is absent or fails on a frame.
//
// Frames whose length or sample rate differ from the configured format are
// rejected as [DetectorError] before either path runs; they are never
// resized. Classification is per frame: no state is carried across calls
// beyond what the primary session itself keeps.
type Detector struct {
	primary      vad.SessionHandle
	energy       *energy.Session
	frameSamples int
	sampleRate   int
}

// NewDetector returns a detector for frames of frameSamples samples at
// sampleRate. primary may be nil, in which case every frame goes through the
// energy gate. A threshold of zero selects [vad.DefaultEnergyThreshold].
func NewDetector(primary vad.SessionHandle, sampleRate, frameSamples int, threshold float64) *Detector {
	return &Detector{
		primary:      primary,
		energy:       energy.NewSession(threshold),
		frameSamples: frameSamples,
		sampleRate:   sampleRate,
	}
}

// Classify returns the classification of f.
func (d *Detector) Classify(f audio.Frame) Classification {
	c, _ := d.classify(f)
	return c
}

// classify returns the classification of f and the path that produced it.
func (d *Detector) classify(f audio.Frame) (Classification, string) {
	if len(f.Samples) != d.frameSamples || (f.SampleRate != 0 && f.SampleRate != d.sampleRate) {
		return DetectorError, PathRejected
	}
	if d.primary != nil {
		ev, err := d.primary.ProcessFrame(f.Bytes())
		switch {
		case err == nil:
			return fromEvent(ev), PathPrimary
		case errors.Is(err, vad.ErrFrameSize):
			return DetectorError, PathRejected
		}
	}
	return fromEvent(d.energy.Classify(f.Samples)), PathEnergy
}

func fromEvent(ev vad.Event) Classification {
	if ev.Speech {
		return Speech
	}
	return Silence
}
