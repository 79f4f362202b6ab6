package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when a synthesis stream is abandoned
// (e.g., playback failed half way through).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
