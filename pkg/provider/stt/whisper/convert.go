package whisper

import (
	"strings"

	"github.com/MrWong99/voicemcp/pkg/audio"
	"github.com/MrWong99/voicemcp/pkg/provider/stt"
)

// modelSampleRate is the only input rate whisper models accept.
const modelSampleRate = 16000

// prepareSamples resamples the utterance to 16 kHz when needed and
// normalises it to float32 in [-1, 1).
func prepareSamples(u stt.Utterance) []float32 {
	samples := u.Samples
	if u.SampleRate > 0 && u.SampleRate != modelSampleRate {
		samples = audio.ResampleMono16(samples, u.SampleRate, modelSampleRate)
	}
	return audio.Float32(samples)
}

// pickLanguage returns the utterance language, falling back to def. Region
// suffixes are dropped because whisper only understands ISO-639-1 codes.
func pickLanguage(u stt.Utterance, def string) string {
	lang := u.Language
	if lang == "" {
		lang = def
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

// initialPrompt turns vocabulary hints into a prompt that biases decoding
// toward those spellings.
func initialPrompt(u stt.Utterance) string {
	return strings.Join(u.Keywords, ", ")
}
