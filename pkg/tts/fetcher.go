// Package tts implements the non-blocking TTS streaming fetcher: given text
// and an excitement level, stream decoded PCM chunks from an external
// provider under a hard deadline to first byte.
package tts

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when no byte arrives within the configured
// tts_timeout of the request start (spec §4.3).
var ErrTimeout = errors.New("tts: no audio within timeout")

// ErrFetch wraps any other provider-side failure (connection refused,
// non-2xx status, malformed stream).
var ErrFetch = errors.New("tts: fetch failed")

// Fetcher synthesizes speech for a single commentary event. Implementations
// run on a worker goroutine distinct from the mixer callback and never
// touch the audio device or disk directly.
type Fetcher interface {
	// Synthesize opens a streaming request parametrized by excitement
	// (0-10, monotonic in provider voice intensity) and calls onChunk for
	// each decoded mono 16-bit PCM chunk as it arrives. It returns
	// ErrTimeout if no chunk arrives within timeout of the call starting,
	// ErrFetch (wrapped) on any other provider failure, or nil once the
	// provider signals end of stream. onChunk may be called zero or more
	// times before an error is returned; any bytes already delivered stay
	// valid for the caller to play.
	Synthesize(ctx context.Context, text string, excitement int, timeout time.Duration, onChunk func([]byte) error) error
}

// firstByteGuard wraps onChunk so the caller can detect, via the returned
// channel, the moment the first chunk arrives. The channel is never closed
// if the stream ends without producing a chunk.
func firstByteGuard(onChunk func([]byte) error) (wrapped func([]byte) error, first <-chan struct{}) {
	ch := make(chan struct{})
	var closed bool
	wrapped = func(chunk []byte) error {
		if !closed {
			closed = true
			close(ch)
		}
		return onChunk(chunk)
	}
	return wrapped, ch
}

// runWithDeadline drives fetch in its own goroutine and enforces the
// timeout-to-first-byte contract independent of how the underlying
// transport behaves, so every Fetcher implementation gets the same
// truncation semantics for free.
func runWithDeadline(ctx context.Context, timeout time.Duration, fetch func(ctx context.Context, onChunk func([]byte) error) error, onChunk func([]byte) error) error {
	wrapped, first := firstByteGuard(onChunk)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fetch(fetchCtx, wrapped)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-first:
		// First byte arrived in time; now just wait for the stream to
		// finish without a further deadline (the provider's own read
		// deadlines, if any, bound this).
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			cancel()
			<-done
			return ctx.Err()
		}
	case err := <-done:
		// Stream ended (error or clean EOF) before producing any byte.
		return err
	case <-timer.C:
		cancel()
		<-done
		return ErrTimeout
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}
