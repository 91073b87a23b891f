package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/d1nch8g/talk/config"
	"github.com/d1nch8g/talk/engine"
	"github.com/d1nch8g/talk/sink"
	"github.com/d1nch8g/talk/sound"
	"github.com/d1nch8g/talk/tts"
)

const defaultEdgeVoice = "en-US-AriaNeural"

var (
	flagVoice        string
	flagOutput       string
	flagListDevices  bool
	flagOutputDevice int
	flagLanguage     string
	flagSampleRate   int
	flagStream       bool
	flagBackend      string
	flagListVoices   bool
	flagServer       string
	flagSSLCert      string
	flagUseSSL       bool

	rootCmd = &cobra.Command{
		Use:           "talk",
		Short:         "Type text, hear it spoken",
		Long:          "Reads lines of text from standard input, synthesizes them through a remote speech service and plays the audio, optionally mirroring everything played into a WAV file.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          execute,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagVoice, "voice", "marina", "voice name to use")
	flags.StringVarP(&flagOutput, "output", "o", "", "output .wav file to write synthesized audio to")
	flags.BoolVar(&flagListDevices, "list-devices", false, "list output audio device indices and exit")
	flags.IntVar(&flagOutputDevice, "output-device", 0, "output device index to use")
	flags.StringVar(&flagLanguage, "language-code", "en-US", "language of the input text")
	flags.IntVar(&flagSampleRate, "sample-rate-hz", 44100, "number of audio frames per second in synthesized audio")
	flags.BoolVar(&flagStream, "stream", false, "play audio chunks as they get ready instead of waiting for the complete response")
	flags.StringVar(&flagBackend, "backend", config.BackendYandex, "synthesis backend, yandex or edge")
	flags.BoolVar(&flagListVoices, "list-voices", false, "list voices of the edge backend and exit")
	flags.StringVar(&flagServer, "server", tts.YandexTTSEndpoint, "synthesis server endpoint")
	flags.StringVar(&flagSSLCert, "ssl-cert", "", "path to a TLS certificate for the server connection")
	flags.BoolVar(&flagUseSSL, "use-ssl", true, "use TLS for the server connection")
}

// audioSink is the slice of sink.Sink the session needs.
type audioSink interface {
	Write(chunk []byte) error
	Close() error
}

// runDeps carries the resource constructors run dispatches to, so tests can
// observe which resources a given configuration acquires.
type runDeps struct {
	listDevices func(w io.Writer) error
	listVoices  func(ctx context.Context, w io.Writer) error
	newSynth    func(cfg *config.Config) (tts.Synthesizer, error)
	openSink    func(cfg *config.Config) (audioSink, error)
	interrupts  <-chan os.Signal
	in          io.Reader
	out         io.Writer
}

// run dispatches a resolved configuration: the listing side operations exit
// without acquiring a synthesis connection or a device; otherwise the full
// pipeline is wired up, the prompt loop runs, and the sink is released on
// every exit path including interruption.
func run(ctx context.Context, cfg *config.Config, deps runDeps) error {
	if cfg.ListDevices {
		return deps.listDevices(deps.out)
	}
	if cfg.ListVoices {
		return deps.listVoices(ctx, deps.out)
	}

	synth, err := deps.newSynth(cfg)
	if err != nil {
		return err
	}
	snk, err := deps.openSink(cfg)
	if err != nil {
		synth.Close()
		return err
	}

	// Interruption still has to finalize the WAV header and release the
	// device before the process dies.
	go func() {
		<-deps.interrupts
		log.Warn("interrupted, closing audio sink")
		snk.Close()
		synth.Close()
		os.Exit(130)
	}()

	e := &engine.Engine{
		Synth:  synth,
		Sink:   snk,
		In:     deps.in,
		Out:    deps.out,
		Stream: cfg.Stream,
	}
	runErr := e.Run(ctx)

	if err := snk.Close(); runErr == nil {
		runErr = err
	}
	if err := synth.Close(); runErr == nil {
		runErr = err
	}
	return runErr
}

func execute(cmd *cobra.Command, _ []string) error {
	raw := config.Config{
		Backend:      flagBackend,
		Voice:        flagVoice,
		Language:     flagLanguage,
		SampleRateHz: flagSampleRate,
		Output:       flagOutput,
		ListDevices:  flagListDevices,
		ListVoices:   flagListVoices,
		Stream:       flagStream,
		Server:       flagServer,
		SSLCert:      flagSSLCert,
		UseSSL:       flagUseSSL,
	}
	if cmd.Flags().Changed("output-device") {
		raw.OutputDevice = &flagOutputDevice
	}
	// The edge backend has its own voice namespace and a fixed rate, so only
	// keep the defaults the user did not override.
	if flagBackend == config.BackendEdge {
		if !cmd.Flags().Changed("voice") {
			raw.Voice = defaultEdgeVoice
		}
		if !cmd.Flags().Changed("sample-rate-hz") {
			raw.SampleRateHz = config.EdgeSampleRateHz
		}
	}

	cfg, err := config.Load(raw)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	return run(cmd.Context(), cfg, runDeps{
		listDevices: sound.ListOutputDevices,
		listVoices:  printVoices,
		newSynth:    newSynthesizer,
		openSink:    openSink,
		interrupts:  sig,
		in:          os.Stdin,
		out:         os.Stdout,
	})
}

func newSynthesizer(cfg *config.Config) (tts.Synthesizer, error) {
	options := tts.Options{
		Voice:        cfg.Voice,
		Language:     cfg.Language,
		SampleRateHz: cfg.SampleRateHz,
	}
	switch cfg.Backend {
	case config.BackendEdge:
		return tts.NewEdgeTTSClient(options), nil
	default:
		return tts.NewYandexTTSClient(tts.YandexConfig{
			Server:   cfg.Server,
			SSLCert:  cfg.SSLCert,
			UseSSL:   cfg.UseSSL,
			ApiKey:   cfg.ApiKey,
			FolderID: cfg.FolderID,
			Options:  options,
		})
	}
}

func openSink(cfg *config.Config) (audioSink, error) {
	player := sound.NewPortaudioPlayer(sound.Config{
		SampleRateHz: cfg.SampleRateHz,
		DeviceIndex:  cfg.OutputDevice,
	})
	return sink.Open(player, cfg.Output, cfg.SampleRateHz)
}

func printVoices(ctx context.Context, w io.Writer) error {
	voices, err := tts.ListVoices(ctx)
	if err != nil {
		return err
	}
	for _, voice := range voices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", voice.ShortName, voice.Locale, voice.Gender)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
