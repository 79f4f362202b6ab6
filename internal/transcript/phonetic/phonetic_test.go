package phonetic_test

import (
	"testing"

	"github.com/MrWong99/voicemcp/internal/transcript"
	"github.com/MrWong99/voicemcp/internal/transcript/phonetic"
)

var _ transcript.PhoneticMatcher = (*phonetic.Matcher)(nil)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	vocab := []string{"Kubernetes", "Grafana", "PostgreSQL", "GitHub Actions"}

	tests := []struct {
		name        string
		word        string
		want        string
		wantMatched bool
	}{
		{name: "case only", word: "kubernetes", want: "Kubernetes", wantMatched: true},
		{name: "upper case", word: "GRAFANA", want: "Grafana", wantMatched: true},
		{name: "split word", word: "postgre sql", want: "PostgreSQL", wantMatched: true},
		{name: "multi word", word: "github actions", want: "GitHub Actions", wantMatched: true},
		{name: "unrelated", word: "hello", want: "hello", wantMatched: false},
		{name: "window wider than term", word: "open grafana", want: "open grafana", wantMatched: false},
	}

	m := phonetic.New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, conf, matched := m.Match(tc.word, vocab)
			if matched != tc.wantMatched {
				t.Fatalf("Match(%q): matched=%v, want %v", tc.word, matched, tc.wantMatched)
			}
			if got != tc.want {
				t.Errorf("Match(%q) = %q, want %q", tc.word, got, tc.want)
			}
			if matched && conf < 0.9 {
				t.Errorf("Match(%q): confidence=%f, want >= 0.9", tc.word, conf)
			}
			if !matched && conf != 0 {
				t.Errorf("Match(%q): confidence=%f, want 0", tc.word, conf)
			}
		})
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(1.01),
		phonetic.WithFuzzyThreshold(1.01),
	)
	if _, _, matched := m.Match("kubernetes", []string{"Kubernetes"}); matched {
		t.Fatal("Match with unreachable thresholds should reject, got matched=true")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if got, conf, matched := m.Match("grafana", nil); matched || got != "grafana" || conf != 0 {
		t.Errorf("Match with nil vocabulary = (%q, %f, %v), want original unmatched", got, conf, matched)
	}
	if got, conf, matched := m.Match("", []string{"Grafana"}); matched || got != "" || conf != 0 {
		t.Errorf("Match with empty word = (%q, %f, %v), want empty unmatched", got, conf, matched)
	}
}

func TestPrepareVocabulary(t *testing.T) {
	t.Parallel()

	v := phonetic.PrepareVocabulary([]string{"Grafana", "  ", "GitHub Actions", ""})
	if v.Len() != 2 {
		t.Errorf("Len = %d, want 2", v.Len())
	}
	if v.MaxWords() != 2 {
		t.Errorf("MaxWords = %d, want 2", v.MaxWords())
	}
}
