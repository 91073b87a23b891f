package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/d1nch8g/talk/tts"
)

// AudioSink accepts ordered PCM chunks for playback and mirroring.
type AudioSink interface {
	Write(chunk []byte) error
}

// Engine drives the interactive prompt loop: read one line of text, time
// the synthesis round trip in the selected mode, and feed the resulting
// audio chunks to the sink in arrival order. The loop ends cleanly on end
// of input; any synthesis or sink error ends the session.
type Engine struct {
	Synth  tts.Synthesizer
	Sink   AudioSink
	In     io.Reader
	Out    io.Writer
	Stream bool
}

func (e *Engine) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(e.In)
	for {
		fmt.Fprint(e.Out, "Speak: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(e.Out)
			log.Debug("session ended", "reason", "end of input")
			return nil
		}
		text := scanner.Text()

		fmt.Fprintln(e.Out, "Generating audio for request...")
		fmt.Fprintf(e.Out, "  > '%s': ", text)
		start := time.Now()

		var err error
		if e.Stream {
			err = e.speakStreaming(ctx, text, start)
		} else {
			err = e.speakBatch(ctx, text, start)
		}
		if err != nil {
			return err
		}
	}
}

func (e *Engine) speakStreaming(ctx context.Context, text string, start time.Time) error {
	audioData := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Synth.SynthesizeStream(ctx, text, audioData)
	}()

	first := true
	for chunk := range audioData {
		if first {
			fmt.Fprintf(e.Out, "Time to first audio: %.3fs\n", time.Since(start).Seconds())
			first = false
		}
		if err := e.Sink.Write(chunk); err != nil {
			// Unblock the producer so it can close the channel.
			go func() {
				for range audioData {
				}
			}()
			<-errCh
			return err
		}
	}
	if first {
		fmt.Fprintln(e.Out)
	}
	return <-errCh
}

func (e *Engine) speakBatch(ctx context.Context, text string, start time.Time) error {
	audio, err := e.Synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.Out, "Time spent: %.3fs\n", time.Since(start).Seconds())
	if len(audio) == 0 {
		return nil
	}
	return e.Sink.Write(audio)
}
