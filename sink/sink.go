package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/d1nch8g/talk/sound"
)

// ErrFileWrite reports a failure creating or writing the output WAV file.
var ErrFileWrite = errors.New("output file write failed")

// ErrClosed reports a write attempted after the sink was closed.
var ErrClosed = errors.New("sink is closed")

// Sink fans each audio chunk out to the live output device and, when an
// output path is configured, to a WAV mirror of everything played. The
// device and the file are acquired and released together, so a finalized
// file always holds exactly the bytes that were sent to the device.
//
// Write and Close are serialized, so the interrupt path may close the sink
// while the loop is mid-write without corrupting the WAV header.
type Sink struct {
	mu      sync.Mutex
	player  sound.Player
	file    *os.File
	encoder *wav.Encoder
	rate    int
	closed  bool
}

// Open acquires the player and, if outputPath is non-empty, creates the WAV
// mirror. On file failure the already-open player is released before
// returning.
func Open(player sound.Player, outputPath string, sampleRateHz int) (*Sink, error) {
	if err := player.Open(); err != nil {
		return nil, err
	}
	s := &Sink{player: player, rate: sampleRateHz}
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			player.Close()
			return nil, fmt.Errorf("%w: %v", ErrFileWrite, err)
		}
		s.file = f
		s.encoder = wav.NewEncoder(f, sampleRateHz, 16, 1, 1)
	}
	return s, nil
}

// Write forwards one chunk of 16-bit little-endian mono PCM to every
// destination, in order, without dropping bytes. A chunk is validated
// before it reaches any destination, so both legs always see the same
// bytes.
func (s *Sink) Write(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.encoder != nil && len(chunk)%2 != 0 {
		return fmt.Errorf("%w: pcm chunk of %d bytes is not sample aligned", ErrFileWrite, len(chunk))
	}

	if err := s.player.Write(chunk); err != nil {
		return err
	}
	if s.encoder == nil {
		return nil
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: s.rate},
		Data:           make([]int, len(chunk)/2),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(chunk[i*2 : i*2+2])))
	}
	if err := s.encoder.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	return nil
}

// Close finalizes the WAV header and releases the device. It runs on every
// exit path, including after a failed write, and is safe to call twice.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: finalize wav header: %v", ErrFileWrite, err))
		}
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrFileWrite, err))
		}
	}
	if err := s.player.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
