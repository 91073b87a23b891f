package sound

import (
	"encoding/binary"
	"testing"
)

func TestBytesToSamples(t *testing.T) {
	raw := make([]byte, 6)
	binary.LittleEndian.PutUint16(raw[0:], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(raw[2:], uint16(int16(-1000)))
	binary.LittleEndian.PutUint16(raw[4:], uint16(int16(0)))

	samples := bytesToSamples(raw)
	want := []int16{1000, -1000, 0}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestBytesToSamplesIgnoresTrailingByte(t *testing.T) {
	if got := bytesToSamples([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Errorf("got %d samples, want 1", len(got))
	}
}

func TestWriteRequiresOpenStream(t *testing.T) {
	p := NewPortaudioPlayer(Config{SampleRateHz: 44100})
	if err := p.Write([]byte{0x00, 0x01}); err == nil {
		t.Error("Write on an unopened player must fail")
	}
}

func TestCloseWithoutOpenIsANoOp(t *testing.T) {
	p := NewPortaudioPlayer(Config{SampleRateHz: 44100})
	if err := p.Close(); err != nil {
		t.Errorf("Close on an unopened player failed: %v", err)
	}
}
