package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeSynthesizer serves a fixed audio buffer, split into chunks for the
// streaming operation.
type fakeSynthesizer struct {
	audio   []byte
	chunks  [][]byte
	err     error
	batches int
	streams int
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	f.batches++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func (f *fakeSynthesizer) SynthesizeStream(_ context.Context, _ string, audioData chan<- []byte) error {
	f.streams++
	defer close(audioData)
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		audioData <- chunk
	}
	return nil
}

func (f *fakeSynthesizer) Close() error { return nil }

type fakeSink struct {
	chunks [][]byte
	err    error
}

func (f *fakeSink) Write(chunk []byte) error {
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeSink) concat() []byte {
	var out []byte
	for _, c := range f.chunks {
		out = append(out, c...)
	}
	return out
}

func run(t *testing.T, e *Engine) (string, error) {
	t.Helper()
	var out bytes.Buffer
	e.Out = &out
	err := e.Run(context.Background())
	return out.String(), err
}

func TestRunBatchPlaysWholeBuffer(t *testing.T) {
	synth := &fakeSynthesizer{audio: []byte{1, 2, 3, 4, 5, 6}}
	snk := &fakeSink{}
	out, err := run(t, &Engine{
		Synth: synth,
		Sink:  snk,
		In:    strings.NewReader("hello world\n"),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(snk.chunks) != 1 {
		t.Fatalf("batch mode should sink one chunk, got %d", len(snk.chunks))
	}
	if !bytes.Equal(snk.chunks[0], synth.audio) {
		t.Errorf("sink got %v, want %v", snk.chunks[0], synth.audio)
	}
	if synth.batches != 1 || synth.streams != 0 {
		t.Errorf("batches=%d streams=%d, want 1/0", synth.batches, synth.streams)
	}
	if !strings.Contains(out, "Speak: ") {
		t.Error("prompt missing from output")
	}
	if !strings.Contains(out, "> 'hello world'") {
		t.Error("echoed request text missing from output")
	}
	if !strings.Contains(out, "Time spent:") {
		t.Error("batch latency metric missing from output")
	}
}

func TestRunStreamingKeepsChunkOrder(t *testing.T) {
	chunks := [][]byte{{1, 1}, {2, 2, 2}, {3}, {4, 4, 4, 4}}
	synth := &fakeSynthesizer{chunks: chunks}
	snk := &fakeSink{}
	out, err := run(t, &Engine{
		Synth:  synth,
		Sink:   snk,
		In:     strings.NewReader("hello\n"),
		Stream: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(snk.chunks) != len(chunks) {
		t.Fatalf("sink got %d chunks, want %d", len(snk.chunks), len(chunks))
	}
	for i := range chunks {
		if !bytes.Equal(snk.chunks[i], chunks[i]) {
			t.Errorf("chunk %d reordered or altered: got %v, want %v", i, snk.chunks[i], chunks[i])
		}
	}
	if got := strings.Count(out, "Time to first audio:"); got != 1 {
		t.Errorf("streaming metric printed %d times, want 1", got)
	}
}

func TestBatchAndStreamingSinkTheSameBytes(t *testing.T) {
	content := []byte{9, 8, 7, 6, 5, 4, 3, 2}

	batchSink := &fakeSink{}
	_, err := run(t, &Engine{
		Synth: &fakeSynthesizer{audio: content},
		Sink:  batchSink,
		In:    strings.NewReader("same text\n"),
	})
	if err != nil {
		t.Fatalf("batch run failed: %v", err)
	}

	streamSink := &fakeSink{}
	_, err = run(t, &Engine{
		Synth:  &fakeSynthesizer{chunks: [][]byte{content[:3], content[3:4], content[4:]}},
		Sink:   streamSink,
		In:     strings.NewReader("same text\n"),
		Stream: true,
	})
	if err != nil {
		t.Fatalf("streaming run failed: %v", err)
	}

	if !bytes.Equal(batchSink.concat(), streamSink.concat()) {
		t.Error("batch and streaming modes sank different bytes for the same content")
	}
}

func TestRunEndsCleanlyOnEndOfInput(t *testing.T) {
	snk := &fakeSink{}
	_, err := run(t, &Engine{
		Synth: &fakeSynthesizer{},
		Sink:  snk,
		In:    strings.NewReader(""),
	})
	if err != nil {
		t.Fatalf("end of input must end the loop cleanly, got %v", err)
	}
	if len(snk.chunks) != 0 {
		t.Errorf("no input should produce no audio, sink got %d chunks", len(snk.chunks))
	}
}

func TestRunServesEveryLine(t *testing.T) {
	synth := &fakeSynthesizer{audio: []byte{1}}
	_, err := run(t, &Engine{
		Synth: synth,
		Sink:  &fakeSink{},
		In:    strings.NewReader("one\ntwo\nthree\n"),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if synth.batches != 3 {
		t.Errorf("served %d requests, want 3", synth.batches)
	}
}

func TestSynthesisErrorEndsTheSession(t *testing.T) {
	sentinel := errors.New("invalid voice")

	_, err := run(t, &Engine{
		Synth: &fakeSynthesizer{err: sentinel},
		Sink:  &fakeSink{},
		In:    strings.NewReader("hello\nnever reached\n"),
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("batch: got %v, want the synthesis error", err)
	}

	_, err = run(t, &Engine{
		Synth:  &fakeSynthesizer{err: sentinel},
		Sink:   &fakeSink{},
		In:     strings.NewReader("hello\nnever reached\n"),
		Stream: true,
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("streaming: got %v, want the synthesis error", err)
	}
}

func TestSinkErrorEndsTheSession(t *testing.T) {
	sentinel := errors.New("device gone")
	_, err := run(t, &Engine{
		Synth:  &fakeSynthesizer{chunks: [][]byte{{1}, {2}, {3}}},
		Sink:   &fakeSink{err: sentinel},
		In:     strings.NewReader("hello\n"),
		Stream: true,
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want the sink error", err)
	}
}
