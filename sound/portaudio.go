package sound

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

type Config struct {
	SampleRateHz    int
	FramesPerBuffer int
	DeviceIndex     *int // nil selects the system default output device
}

type PortaudioPlayer struct {
	stream  *portaudio.Stream
	buffer  []int16
	pending []int16
	carry   []byte
	config  Config
}

func NewPortaudioPlayer(config Config) *PortaudioPlayer {
	if config.FramesPerBuffer == 0 {
		config.FramesPerBuffer = 1024
	}
	return &PortaudioPlayer{
		config: config,
		buffer: make([]int16, config.FramesPerBuffer),
	}
}

// Ensure PortaudioPlayer implements Player interface
var _ Player = (*PortaudioPlayer)(nil)

func (p *PortaudioPlayer) Open() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	stream, err := p.openStream()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	p.stream = stream
	return nil
}

func (p *PortaudioPlayer) openStream() (*portaudio.Stream, error) {
	if p.config.DeviceIndex == nil {
		return portaudio.OpenDefaultStream(0, 1, float64(p.config.SampleRateHz), p.config.FramesPerBuffer, p.buffer)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	idx := *p.config.DeviceIndex
	if idx >= len(devices) {
		return nil, fmt.Errorf("no device with index %d", idx)
	}
	device := devices[idx]
	if device.MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", idx, device.Name)
	}

	params := portaudio.HighLatencyParameters(nil, device)
	params.Output.Channels = 1
	params.SampleRate = float64(p.config.SampleRateHz)
	params.FramesPerBuffer = p.config.FramesPerBuffer
	return portaudio.OpenStream(params, p.buffer)
}

// Write queues a PCM chunk for playback. Samples are carried over between
// calls so chunk boundaries never insert silence or split a sample.
func (p *PortaudioPlayer) Write(chunk []byte) error {
	if p.stream == nil {
		return errors.New("stream not opened")
	}

	if len(p.carry) > 0 {
		chunk = append(p.carry, chunk...)
		p.carry = nil
	}
	if len(chunk)%2 == 1 {
		p.carry = []byte{chunk[len(chunk)-1]}
		chunk = chunk[:len(chunk)-1]
	}

	p.pending = append(p.pending, bytesToSamples(chunk)...)
	for len(p.pending) >= len(p.buffer) {
		copy(p.buffer, p.pending[:len(p.buffer)])
		p.pending = p.pending[len(p.buffer):]
		if err := p.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the remaining partial buffer zero-padded, then stops and
// releases the device. Safe to call more than once.
func (p *PortaudioPlayer) Close() error {
	if p.stream == nil {
		return nil
	}
	defer portaudio.Terminate()

	if len(p.pending) > 0 {
		copy(p.buffer, p.pending)
		for i := len(p.pending); i < len(p.buffer); i++ {
			p.buffer[i] = 0
		}
		p.pending = nil
		// Best-effort flush of the final partial buffer.
		p.stream.Write()
	}

	stream := p.stream
	p.stream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// ListOutputDevices enumerates output-capable devices, one line per device
// with its index, name and host API. It never opens a stream.
func ListOutputDevices(w io.Writer) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	for i, device := range devices {
		if device.MaxOutputChannels < 1 {
			continue
		}
		fmt.Fprintf(w, "%d: %s (%s, %d output channels, %.0f Hz default)\n",
			i, device.Name, device.HostApi.Name, device.MaxOutputChannels, device.DefaultSampleRate)
	}
	return nil
}

func bytesToSamples(audioBytes []byte) []int16 {
	samples := make([]int16, len(audioBytes)/2)
	for i := 0; i < len(samples); i++ {
		// Convert little-endian bytes to int16
		samples[i] = int16(binary.LittleEndian.Uint16(audioBytes[i*2 : i*2+2]))
	}
	return samples
}
