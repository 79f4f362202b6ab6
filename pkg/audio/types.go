package audio

import "time"

const (
	// DefaultSampleRate is the capture rate expected by the VAD and by most
	// local transcription models.
	DefaultSampleRate = 16000

	// DefaultFrameDuration is the length of one captured frame. WebRTC VAD
	// accepts 10, 20, or 30 ms frames.
	DefaultFrameDuration = 30 * time.Millisecond
)

// Frame is one fixed time slice of mono signed 16-bit audio. Frames are the
// atomic unit of the capture pipeline: pulled from a [Source], classified by
// the silence detector, and accumulated into an utterance.
//
// A Frame must be treated as immutable once produced; sources hand out a fresh
// Samples slice for every frame.
type Frame struct {
	// Samples holds the PCM samples of a single channel.
	Samples []int16

	// SampleRate in Hz (e.g., 16000).
	SampleRate int
}

// Duration returns the wall-clock length of the frame. Returns 0 when the
// sample rate is unset.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Bytes returns the frame as little-endian PCM.
func (f Frame) Bytes() []byte {
	return Int16ToBytes(f.Samples)
}

// SamplesPerFrame returns how many samples a frame of duration d holds at
// sampleRate.
func SamplesPerFrame(sampleRate int, d time.Duration) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}
