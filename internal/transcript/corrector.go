package transcript

import (
	"context"
	"strings"
	"unicode"

	"github.com/MrWong99/voicemcp/internal/observe"
	"github.com/MrWong99/voicemcp/internal/transcript/phonetic"
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default [phonetic.Matcher].
func WithMatcher(m PhoneticMatcher) Option {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// Corrector replaces misheard spans of a transcript with vocabulary terms.
// It is read-only after construction and safe for concurrent use.
type Corrector struct {
	vocabulary []string
	matcher    PhoneticMatcher

	// prepared is set when matcher is a *phonetic.Matcher.
	prepared *phonetic.Vocabulary
	maxWords int
}

// NewCorrector builds a [Corrector] for vocabulary. Blank terms are ignored.
// An empty vocabulary yields a Corrector that returns text unchanged.
func NewCorrector(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{matcher: phonetic.New()}
	for _, o := range opts {
		o(c)
	}
	for _, v := range vocabulary {
		if v = strings.TrimSpace(v); v != "" {
			c.vocabulary = append(c.vocabulary, v)
		}
	}
	if _, ok := c.matcher.(*phonetic.Matcher); ok {
		c.prepared = phonetic.PrepareVocabulary(c.vocabulary)
		c.maxWords = c.prepared.MaxWords()
	} else {
		c.maxWords = maxWordCount(c.vocabulary)
	}
	return c
}

// Vocabulary returns the terms the Corrector matches against.
func (c *Corrector) Vocabulary() []string {
	return append([]string(nil), c.vocabulary...)
}

// Correct returns text with misheard vocabulary spans replaced.
//
// Tokens are whitespace-separated words. At each token position, n-gram
// windows from the longest vocabulary term word count down to 1 are tested,
// so multi-word terms take precedence over partial single-word matches.
// Punctuation surrounding a replaced span is preserved. Output tokens are
// joined with single spaces.
func (c *Corrector) Correct(ctx context.Context, text string) Result {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || c.maxWords == 0 {
		return Result{Text: text}
	}

	output := make([]string, 0, len(tokens))
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := min(c.maxWords, len(tokens)-i)

		matched := false
		for n := maxN; n >= 1; n-- {
			lead, core, trail := splitWindow(tokens[i : i+n])
			if len([]rune(core)) < minSpanRunes {
				continue
			}
			term, conf, ok := c.match(core)
			if !ok {
				continue
			}
			output = append(output, lead+term+trail)
			if term != core {
				corrections = append(corrections, Correction{
					Original:   core,
					Corrected:  term,
					Confidence: conf,
				})
			}
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	if len(corrections) > 0 {
		log := observe.Logger(ctx)
		for _, cr := range corrections {
			log.Debug("transcript: corrected span",
				"original", cr.Original,
				"corrected", cr.Corrected,
				"confidence", cr.Confidence,
			)
		}
	}

	return Result{Text: strings.Join(output, " "), Corrections: corrections}
}

// minSpanRunes keeps short function words ("a", "to") out of matching.
const minSpanRunes = 3

func (c *Corrector) match(span string) (string, float64, bool) {
	if pm, ok := c.matcher.(*phonetic.Matcher); ok && c.prepared != nil {
		return pm.MatchVocabulary(span, c.prepared)
	}
	return c.matcher.Match(span, c.vocabulary)
}

// splitWindow joins tokens with spaces and separates leading punctuation of
// the first token and trailing punctuation of the last token from the core.
func splitWindow(tokens []string) (lead, core, trail string) {
	joined := strings.Join(tokens, " ")
	start := strings.IndexFunc(joined, isWordRune)
	if start < 0 {
		return joined, "", ""
	}
	end := strings.LastIndexFunc(joined, isWordRune)
	end += len(string([]rune(joined[end:])[0]))
	return joined[:start], joined[start:end], joined[end:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any term.
func maxWordCount(terms []string) int {
	n := 0
	for _, t := range terms {
		n = max(n, len(strings.Fields(t)))
	}
	return n
}
