package openai

import (
	"strings"

	"github.com/MrWong99/voicemcp/pkg/provider/tts"
)

// kokoroVoices is the Kokoro v1.0 English voice pack plus one voice per other
// supported language.
var kokoroVoices = []string{
	"af_alloy", "af_aoede", "af_bella", "af_heart", "af_jessica", "af_kore",
	"af_nicole", "af_nova", "af_river", "af_sarah", "af_sky",
	"am_adam", "am_echo", "am_eric", "am_fenrir", "am_liam", "am_michael",
	"am_onyx", "am_puck",
	"bf_alice", "bf_emma", "bf_isabella", "bf_lily",
	"bm_daniel", "bm_fable", "bm_george", "bm_lewis",
	"ef_dora", "em_alex",
	"ff_siwis",
	"hf_alpha", "hm_omega",
	"if_sara", "im_nicola",
	"jf_alpha", "jm_kumo",
	"pf_dora", "pm_alex",
	"zf_xiaobei", "zm_yunjian",
}

// languageNames maps Kokoro language letters to names.
var languageNames = map[string]string{
	"a": "American English",
	"b": "British English",
	"e": "Spanish",
	"f": "French",
	"h": "Hindi",
	"i": "Italian",
	"j": "Japanese",
	"p": "Portuguese",
	"z": "Mandarin Chinese",
}

// KokoroVoices returns the built-in Kokoro voice catalogue.
func KokoroVoices() []tts.VoiceProfile {
	out := make([]tts.VoiceProfile, 0, len(kokoroVoices))
	for _, id := range kokoroVoices {
		out = append(out, kokoroProfile(id))
	}
	return out
}

// kokoroProfile derives language and gender from a Kokoro voice ID such as
// "af_heart" (a = American English, f = female).
func kokoroProfile(id string) tts.VoiceProfile {
	v := tts.VoiceProfile{ID: id, Name: id, Provider: "openai"}
	prefix, name, ok := strings.Cut(id, "_")
	if !ok || len(prefix) != 2 {
		return v
	}
	v.Name = name
	v.Language = prefix[:1]
	v.Metadata = map[string]string{}
	if lang, ok := languageNames[v.Language]; ok {
		v.Metadata["language"] = lang
	}
	switch prefix[1] {
	case 'f':
		v.Metadata["gender"] = "female"
	case 'm':
		v.Metadata["gender"] = "male"
	}
	return v
}
