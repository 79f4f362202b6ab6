// Package transcript corrects speech-to-text output against a vocabulary of
// domain terms.
//
// Transcription engines routinely mishear proper nouns and jargon: product
// names, tool names, acronyms. A [Corrector] scans the transcript with n-gram
// windows and replaces spans that sound like a vocabulary term with the term
// itself, using a [PhoneticMatcher] that runs in-process with no network
// calls.
//
// Each [Correction] records the replaced span and the confidence of the match
// so callers can log or audit substitutions.
package transcript

// Correction captures a single substitution made by a [Corrector].
type Correction struct {
	// Original is the span as produced by the STT provider, without
	// surrounding punctuation.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the matcher's similarity score (0.0–1.0).
	Confidence float64
}

// Result is the output of [Corrector.Correct].
type Result struct {
	// Text is the corrected transcript.
	Text string

	// Corrections lists every substitution in order of appearance.
	Corrections []Correction
}

// PhoneticMatcher resolves a word or phrase to a known term based on
// pronunciation similarity.
//
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	// Match attempts to find the term from terms that is most phonetically
	// similar to word.
	//
	// When matched is false, corrected must equal word unchanged and
	// confidence must be 0.
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}
