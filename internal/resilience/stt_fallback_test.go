package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voicemcp/pkg/provider/stt"
	sttmock "github.com/MrWong99/voicemcp/pkg/provider/stt/mock"
)

func utterance() stt.Utterance {
	return stt.Utterance{Samples: make([]int16, 1600), SampleRate: 16000}
}

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Transcript{Text: "from primary"}}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	tr, err := fb.Transcribe(context.Background(), utterance())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "from primary" {
		t.Fatalf("text = %q, want from primary", tr.Text)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	tr, err := fb.Transcribe(context.Background(), utterance())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "from secondary" {
		t.Fatalf("text = %q, want from secondary", tr.Text)
	}
	if secondary.CallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), utterance())
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_Transcribe_OpenPrimaryIsSkipped(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "ok"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fb.AddFallback("secondary", secondary)

	for range 5 {
		if _, err := fb.Transcribe(context.Background(), utterance()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if primary.CallCount() != 2 {
		t.Fatalf("primary called %d times, want 2 before its breaker opened", primary.CallCount())
	}
	if secondary.CallCount() != 5 {
		t.Fatalf("secondary called %d times, want 5", secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_EmptyUtterance(t *testing.T) {
	primary := &sttmock.Provider{}
	fb := NewSTTFallback(primary, "primary", FallbackConfig{})

	_, err := fb.Transcribe(context.Background(), stt.Utterance{SampleRate: 16000})
	if !errors.Is(err, stt.ErrEmptyUtterance) {
		t.Fatalf("err = %v, want ErrEmptyUtterance", err)
	}
	if primary.CallCount() != 0 {
		t.Fatalf("primary called %d times, want 0", primary.CallCount())
	}
}
