package sound

import "errors"

// ErrDeviceUnavailable reports that the requested audio output device could
// not be acquired.
var ErrDeviceUnavailable = errors.New("audio output device unavailable")

// Player defines the interface for audio playback devices
type Player interface {
	// Open acquires the output device
	Open() error

	// Write queues a chunk of 16-bit little-endian mono PCM for playback.
	// Chunks are played in the order they are written
	Write(chunk []byte) error

	// Close flushes buffered samples and releases the device
	Close() error
}
