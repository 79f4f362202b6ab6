package tts

import (
	"context"
	"strings"
	"unicode"
)

// Sentences reads text fragments and emits complete sentences, so batch
// backends can start synthesising the first sentence while later ones are
// still arriving. Any trailing partial sentence is flushed when text closes.
// The returned channel is closed when text is closed or ctx is done.
func Sentences(ctx context.Context, text <-chan string, buf int) <-chan string {
	out := make(chan string, buf)
	go func() {
		defer close(out)
		var b strings.Builder
		emit := func(s string) bool {
			if s == "" {
				return true
			}
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					emit(strings.TrimSpace(b.String()))
					return
				}
				b.WriteString(fragment)
				for {
					s := b.String()
					idx := findSentenceBoundary(s)
					if idx < 0 {
						break
					}
					b.Reset()
					b.WriteString(s[idx+1:])
					if !emit(strings.TrimSpace(s[:idx+1])) {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// findSentenceBoundary returns the byte index of the first sentence-ending
// punctuation followed by whitespace or end of string, or -1.
func findSentenceBoundary(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' || c == '!' || c == '?' {
			if i+1 >= len(s) || unicode.IsSpace(rune(s[i+1])) {
				return i
			}
		}
	}
	return -1
}
