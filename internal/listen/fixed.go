package listen

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/MrWong99/voicemcp/pkg/audio"
)

// recordFixed buffers frames from the first one until at least target of
// audio has been captured. The detector is never consulted.
func (r *Recorder) recordFixed(ctx context.Context, src audio.Source, target time.Duration) ([]audio.Frame, Outcome, error) {
	frames := make([]audio.Frame, 0, int(min(target, r.cfg.MaxFixedDuration)/r.cfg.FrameDuration)+1)
	var got time.Duration
	for got < target {
		f, err := r.next(ctx, src)
		if errors.Is(err, io.EOF) {
			if len(frames) == 0 {
				return nil, OutcomeNoSpeech, nil
			}
			return frames, OutcomeEndOfStream, nil
		}
		if err != nil {
			return nil, OutcomeNone, err
		}
		frames = append(frames, f)
		d := f.Duration()
		if d == 0 {
			d = r.cfg.FrameDuration
		}
		got += d
	}
	return frames, OutcomeFixed, nil
}
