package tts

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

const (
	YandexTTSEndpoint = "tts.api.cloud.yandex.net:443"
)

type YandexConfig struct {
	Server   string
	SSLCert  string
	UseSSL   bool
	ApiKey   string
	FolderID string
	Options  Options
}

type YandexTTSClient struct {
	client   tts.SynthesizerClient
	conn     *grpc.ClientConn
	apiKey   string
	folderID string
	options  Options
}

// Ensure YandexTTSClient implements Synthesizer interface
var _ Synthesizer = (*YandexTTSClient)(nil)

func NewYandexTTSClient(config YandexConfig) (*YandexTTSClient, error) {
	creds, err := transportCredentials(config)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.Dial(config.Server, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}

	return &YandexTTSClient{
		client:   tts.NewSynthesizerClient(conn),
		conn:     conn,
		apiKey:   config.ApiKey,
		folderID: config.FolderID,
		options:  config.Options,
	}, nil
}

func transportCredentials(config YandexConfig) (credentials.TransportCredentials, error) {
	switch {
	case config.SSLCert != "":
		creds, err := credentials.NewClientTLSFromFile(config.SSLCert, "")
		if err != nil {
			return nil, fmt.Errorf("load ssl certificate %q: %w", config.SSLCert, err)
		}
		return creds, nil
	case config.UseSSL:
		return credentials.NewTLS(&tls.Config{}), nil
	default:
		return insecure.NewCredentials(), nil
	}
}

// Synthesize drains the synthesis stream into one buffer. The service only
// exposes a server-streaming call, so batch mode blocks until the stream is
// complete.
func (c *YandexTTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audioData := make(chan []byte, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.SynthesizeStream(ctx, text, audioData)
	}()

	var buf bytes.Buffer
	for chunk := range audioData {
		buf.Write(chunk)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *YandexTTSClient) SynthesizeStream(ctx context.Context, text string, audioData chan<- []byte) error {
	defer close(audioData)

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Api-Key "+c.apiKey)
	ctx = metadata.AppendToOutgoingContext(ctx, "x-folder-id", c.folderID)

	stream, err := c.client.UtteranceSynthesis(ctx, c.buildRequest(text))
	if err != nil {
		return fmt.Errorf("%w: start synthesis: %v", ErrSynthesis, err)
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: receive audio data: %v", ErrSynthesis, err)
		}

		audioChunk := resp.GetAudioChunk()
		if audioChunk == nil {
			continue
		}
		select {
		case audioData <- audioChunk.GetData():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *YandexTTSClient) buildRequest(text string) *tts.UtteranceSynthesisRequest {
	req := &tts.UtteranceSynthesisRequest{}

	req.SetModel("general")
	req.SetText(text)

	// The voice identifier implies the language for this service, so the
	// language code is not marshalled separately.
	voiceHint := &tts.Hints{}
	voiceHint.SetVoice(c.options.Voice)
	req.SetHints([]*tts.Hints{voiceHint})

	// Raw LINEAR16 PCM at the configured rate, so chunks go straight to the
	// sink without container parsing.
	rawAudio := &tts.RawAudio{}
	rawAudio.SetAudioEncoding(tts.RawAudio_LINEAR16_PCM)
	rawAudio.SetSampleRateHertz(int64(c.options.SampleRateHz))

	audioSpec := &tts.AudioFormatOptions{}
	audioSpec.SetRawAudio(rawAudio)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_LUFS)

	return req
}

func (c *YandexTTSClient) Close() error {
	return c.conn.Close()
}
