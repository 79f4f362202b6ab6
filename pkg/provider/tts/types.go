package tts

// VoiceProfile describes a TTS voice and how to speak with it.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "af_heart").
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is the provider-specific language code. Kokoro uses single
	// letters: "a" American English, "b" British English, "e" Spanish,
	// "f" French, "h" Hindi, "i" Italian, "j" Japanese, "p" Portuguese,
	// "z" Mandarin.
	Language string

	// Speed adjusts speaking rate (0.25–4.0, 1.0 = default). Zero means default.
	Speed float64

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}
