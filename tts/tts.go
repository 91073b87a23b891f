package tts

import (
	"context"
	"errors"
)

// ErrSynthesis reports a remote synthesis failure. Synthesis failures end
// the session; no retries are performed anywhere.
var ErrSynthesis = errors.New("synthesis failed")

// Options represents the per-session synthesis parameters
type Options struct {
	Voice        string
	Language     string
	SampleRateHz int
}

// Synthesizer defines the interface for text-to-speech synthesis backends
type Synthesizer interface {
	// Synthesize blocks until the complete audio for text is available and
	// returns it as a single 16-bit little-endian mono PCM buffer
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SynthesizeStream sends audio chunks to audioData in playback order as
	// they become available and closes the channel once the service signals
	// completion
	SynthesizeStream(ctx context.Context, text string, audioData chan<- []byte) error

	// Close releases the connection to the synthesis service
	Close() error
}
