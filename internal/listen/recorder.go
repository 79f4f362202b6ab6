package listen

import (
	"time"

	"github.com/MrWong99/voicemcp/pkg/audio"
)

// State is a recorder state.
type State int

const (
	// Idle is the state before a recording starts and after its buffer has
	// been taken.
	Idle State = iota

	// AwaitingSpeech discards non-speech frames until the first Speech frame.
	AwaitingSpeech

	// Recording buffers every frame until the silence timeout or the
	// duration cap is reached.
	Recording

	// Finalizing holds the finished buffer until [Machine.Take] hands it
	// over.
	Finalizing
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSpeech:
		return "awaiting_speech"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Outcome is the reason a recording ended. Every outcome is a success; only
// device errors are failures.
type Outcome int

const (
	// OutcomeNone is reported for a machine that has not finished.
	OutcomeNone Outcome = iota

	// OutcomeNoSpeech means no Speech frame arrived before the no-speech
	// timeout. The buffer is empty.
	OutcomeNoSpeech

	// OutcomeSilence means the silence timeout elapsed after speech.
	OutcomeSilence

	// OutcomeDurationCap means the maximum recording duration was reached.
	// The buffer is valid.
	OutcomeDurationCap

	// OutcomeFixed means a fixed-duration recording reached its target.
	OutcomeFixed

	// OutcomeEndOfStream means the frame source ended before any other
	// condition fired. The buffer holds whatever was captured.
	OutcomeEndOfStream
)

// String returns the metric label for o.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeNoSpeech:
		return "no_speech"
	case OutcomeSilence:
		return "silence"
	case OutcomeDurationCap:
		return "duration_cap"
	case OutcomeFixed:
		return "fixed"
	case OutcomeEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Limits are the timing parameters of the VAD state machine. A zero
// NoSpeechTimeout or MaxDuration disables that limit. MaxDuration also
// bounds the wait for speech, so a machine with a cap always finalizes.
type Limits struct {
	// FrameDuration is used for frames that do not carry a sample rate.
	FrameDuration time.Duration

	// SilenceTimeout is the run of consecutive non-speech audio that ends a
	// recording.
	SilenceTimeout time.Duration

	// NoSpeechTimeout bounds the wait for the first Speech frame.
	NoSpeechTimeout time.Duration

	// MaxDuration caps the length of the buffered utterance.
	MaxDuration time.Duration
}

// Machine is the record-until-silence state machine. It is driven one frame
// at a time through [Machine.Step] and owns the utterance buffer until
// [Machine.Take] hands it to the caller. It is not safe for concurrent use.
type Machine struct {
	limits Limits

	state   State
	outcome Outcome
	buf     []audio.Frame

	recorded   time.Duration
	waited     time.Duration
	silence    time.Duration
	silenceRun int
}

// NewMachine returns an idle machine.
func NewMachine(l Limits) *Machine {
	return &Machine{limits: l}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// SilenceRun returns the number of consecutive non-speech frames buffered
// since the last Speech frame.
func (m *Machine) SilenceRun() int { return m.silenceRun }

// Recorded returns the duration of audio buffered so far.
func (m *Machine) Recorded() time.Duration { return m.recorded }

// Start moves an idle machine to AwaitingSpeech. It has no effect in any
// other state.
func (m *Machine) Start() {
	if m.state == Idle {
		m.state = AwaitingSpeech
	}
}

// Step feeds one classified frame and returns the resulting state. Stepping
// an idle machine starts it first; frames fed while Finalizing are ignored.
func (m *Machine) Step(f audio.Frame, c Classification) State {
	m.Start()
	d := f.Duration()
	if d == 0 {
		d = m.limits.FrameDuration
	}

	switch m.state {
	case AwaitingSpeech:
		if c == Speech {
			m.buf = append(m.buf, f)
			m.recorded = d
			m.state = Recording
			m.checkCap()
			return m.state
		}
		m.waited += d
		switch {
		case m.limits.NoSpeechTimeout > 0 && m.waited >= m.limits.NoSpeechTimeout,
			m.limits.MaxDuration > 0 && m.waited >= m.limits.MaxDuration:
			m.finalize(OutcomeNoSpeech)
		}

	case Recording:
		m.buf = append(m.buf, f)
		m.recorded += d
		if c == Speech {
			m.silence = 0
			m.silenceRun = 0
		} else {
			m.silence += d
			m.silenceRun++
		}
		if m.limits.SilenceTimeout > 0 && m.silence >= m.limits.SilenceTimeout {
			m.finalize(OutcomeSilence)
			return m.state
		}
		m.checkCap()
	}
	return m.state
}

func (m *Machine) checkCap() {
	if m.limits.MaxDuration > 0 && m.recorded >= m.limits.MaxDuration {
		m.finalize(OutcomeDurationCap)
	}
}

// EndOfStream finalizes the machine because the frame source ended. A
// recording in progress keeps its buffer; a machine still awaiting speech
// finishes with [OutcomeNoSpeech].
func (m *Machine) EndOfStream() {
	switch m.state {
	case Idle, AwaitingSpeech:
		m.state = AwaitingSpeech
		m.finalize(OutcomeNoSpeech)
	case Recording:
		m.finalize(OutcomeEndOfStream)
	}
}

func (m *Machine) finalize(o Outcome) {
	m.state = Finalizing
	m.outcome = o
}

// Take hands the buffer and outcome to the caller and resets the machine to
// Idle for reuse. It returns (nil, OutcomeNone) unless the machine is
// Finalizing.
func (m *Machine) Take() ([]audio.Frame, Outcome) {
	if m.state != Finalizing {
		return nil, OutcomeNone
	}
	buf, o := m.buf, m.outcome
	*m = Machine{limits: m.limits}
	return buf, o
}
