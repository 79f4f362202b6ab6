// Package phonetic implements the [transcript.PhoneticMatcher] interface using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity for ranked candidate selection.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input and for each vocabulary term, both for the space-stripped
//     string and position-by-position when the word counts agree. Any
//     overlapping code makes the term a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (case-insensitive) is selected,
//     provided its score exceeds the phonetic threshold. When no phonetic
//     candidate is found, pure Jaro-Winkler similarity is tested against a
//     higher fuzzy threshold (default 0.85).
//
// Inputs whose letter count differs too much from a term are never matched,
// so a window such as "open grafana" does not swallow its neighbour when
// matched against "Grafana".
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minLengthRatio is the smallest accepted ratio between the shorter and
	// the longer space-stripped string.
	minLengthRatio = 0.75
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic vocabulary matcher. It implements
// [transcript.PhoneticMatcher]. The Matcher is read-only after construction
// and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// term is a vocabulary entry with its derived forms computed once.
type term struct {
	original    string
	lower       string
	tokens      []string
	concat      string
	concatCodes map[string]struct{}
	tokenCodes  []map[string]struct{}
}

func prepare(s string) (term, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return term{}, false
	}
	tokens := strings.Fields(lower)
	t := term{
		original: strings.TrimSpace(s),
		lower:    strings.Join(tokens, " "),
		tokens:   tokens,
		concat:   strings.Join(tokens, ""),
	}
	t.concatCodes = codes(t.concat)
	t.tokenCodes = make([]map[string]struct{}, len(tokens))
	for i, tok := range tokens {
		t.tokenCodes[i] = codes(tok)
	}
	return t, true
}

// Vocabulary is a precomputed term list for repeated matching.
type Vocabulary struct {
	terms    []term
	maxWords int
}

// PrepareVocabulary computes phonetic codes for every term once. Blank terms
// are dropped.
func PrepareVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{}
	for _, s := range terms {
		t, ok := prepare(s)
		if !ok {
			continue
		}
		v.terms = append(v.terms, t)
		v.maxWords = max(v.maxWords, len(t.tokens))
	}
	return v
}

// MaxWords returns the largest number of words in any term.
func (v *Vocabulary) MaxWords() int { return v.maxWords }

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Match attempts to find the term from terms that is most phonetically
// similar to word. word may be a single word or a space-separated phrase.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	return m.MatchVocabulary(word, PrepareVocabulary(terms))
}

// MatchVocabulary is [Matcher.Match] against a prepared vocabulary.
func (m *Matcher) MatchVocabulary(word string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	in, ok := prepare(word)
	if !ok || v == nil || len(v.terms) == 0 {
		return word, 0, false
	}

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, t := range v.terms {
		if !similarLength(in.concat, t.concat) {
			continue
		}
		score := bestJWScore(in, t)
		if phoneticMatch(in, t) {
			if score >= m.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{term: t.original, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= m.fuzzyThreshold && score > best.score {
			best = candidate{term: t.original, score: score}
		}
	}

	if best.term != "" {
		return best.term, best.score, true
	}
	return word, 0, false
}

// codes returns the non-empty Double Metaphone codes of s.
func codes(s string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, sec := matchr.DoubleMetaphone(s)
	if p != "" {
		out[p] = struct{}{}
	}
	if sec != "" {
		out[sec] = struct{}{}
	}
	return out
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// phoneticMatch reports whether the input sounds like the term, either as a
// whole or word by word.
func phoneticMatch(in, t term) bool {
	if codesOverlap(in.concatCodes, t.concatCodes) {
		return true
	}
	if len(in.tokens) != len(t.tokens) {
		return false
	}
	for i := range in.tokenCodes {
		if !codesOverlap(in.tokenCodes[i], t.tokenCodes[i]) {
			return false
		}
	}
	return true
}

func similarLength(a, b string) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return false
	}
	return float64(min(la, lb))/float64(max(la, lb)) >= minLengthRatio
}

// bestJWScore is the highest Jaro-Winkler similarity among the full strings,
// the space-stripped strings, and (for equal word counts) the mean of
// position-wise word scores.
func bestJWScore(in, t term) float64 {
	score := matchr.JaroWinkler(in.lower, t.lower, false)
	if s := matchr.JaroWinkler(in.concat, t.concat, false); s > score {
		score = s
	}
	if len(in.tokens) == len(t.tokens) && len(in.tokens) > 1 {
		var sum float64
		for i := range in.tokens {
			sum += matchr.JaroWinkler(in.tokens[i], t.tokens[i], false)
		}
		if s := sum / float64(len(in.tokens)); s > score {
			score = s
		}
	}
	return score
}
