// Package cue synthesises the short audible cues played around a recording:
// a rising sweep when the microphone opens and a falling sweep when it
// closes.
//
// Synthesis is pure: the same [Params] always produce the same samples.
// Playing them is the caller's job (see [audio.Play]).
package cue

import (
	"math"
	"time"
)

// Defaults for the listening cues.
const (
	DefaultSampleRate = 44100
	DefaultDuration   = 200 * time.Millisecond
	DefaultVolume     = 0.3
	DefaultFade       = 10 * time.Millisecond

	RisingStartHz  = 880.0
	RisingEndHz    = 1320.0
	FallingStartHz = 660.0
	FallingEndHz   = 440.0
)

// Params describes a linear sine sweep.
type Params struct {
	StartHz    float64
	EndHz      float64
	Duration   time.Duration
	SampleRate int

	// Volume is the peak amplitude in [0, 1].
	Volume float64

	// Fade is the length of the linear fade-in and fade-out. It is clamped
	// to half of Duration.
	Fade time.Duration
}

// Rising returns the "listening started" sweep parameters.
func Rising() Params {
	return Params{
		StartHz:    RisingStartHz,
		EndHz:      RisingEndHz,
		Duration:   DefaultDuration,
		SampleRate: DefaultSampleRate,
		Volume:     DefaultVolume,
		Fade:       DefaultFade,
	}
}

// Falling returns the "listening stopped" sweep parameters.
func Falling() Params {
	p := Rising()
	p.StartHz, p.EndHz = FallingStartHz, FallingEndHz
	return p
}

// Tone returns the default rising or falling cue at [DefaultSampleRate].
func Tone(rising bool) []int16 {
	if rising {
		return Synthesize(Rising())
	}
	return Synthesize(Falling())
}

// Synthesize renders p as 16-bit mono PCM. Invalid parameters (non-positive
// duration or sample rate) produce an empty slice.
func Synthesize(p Params) []int16 {
	if p.SampleRate <= 0 || p.Duration <= 0 {
		return []int16{}
	}
	n := int(int64(p.SampleRate) * int64(p.Duration) / int64(time.Second))
	out := make([]int16, n)
	if n == 0 {
		return out
	}

	vol := math.Max(0, math.Min(1, p.Volume))
	fade := p.Fade
	if fade > p.Duration/2 {
		fade = p.Duration / 2
	}
	fadeN := int(int64(p.SampleRate) * int64(fade) / int64(time.Second))

	rate := float64(p.SampleRate)
	dur := float64(n) / rate
	// Instantaneous frequency f(t) = start + k*t, so the phase is the
	// integral 2π(start*t + k*t²/2).
	k := (p.EndHz - p.StartHz) / dur
	for i := range n {
		t := float64(i) / rate
		phase := 2 * math.Pi * (p.StartHz*t + k*t*t/2)
		env := 1.0
		if fadeN > 0 {
			env = math.Min(env, float64(i)/float64(fadeN))
			env = math.Min(env, float64(n-1-i)/float64(fadeN))
		}
		out[i] = int16(math.Sin(phase) * env * vol * math.MaxInt16)
	}
	return out
}
