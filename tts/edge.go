package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	mp3 "github.com/hajimehoshi/go-mp3"
)

const (
	edgeTrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeWssEndpoint        = "wss://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/edge/v1?trustedClientToken=" + edgeTrustedClientToken
	edgeVoiceListEndpoint = "https://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/voices/list?trustedclienttoken=" + edgeTrustedClientToken

	// The read-aloud endpoint only serves this format.
	edgeOutputFormat = "audio-24khz-48kbitrate-mono-mp3"

	edgeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.77 Safari/537.36 Edg/91.0.864.41"

	pathTurnEnd = "turn.end"
)

// EdgeTTSClient synthesizes speech through the Microsoft Edge read-aloud
// websocket service. The service returns mp3, which is decoded to 16-bit
// mono PCM before it reaches the caller, so the engine and sink see the same
// byte format as with the gRPC backend.
type EdgeTTSClient struct {
	dialer  websocket.Dialer
	options Options
}

// Ensure EdgeTTSClient implements Synthesizer interface
var _ Synthesizer = (*EdgeTTSClient)(nil)

func NewEdgeTTSClient(options Options) *EdgeTTSClient {
	return &EdgeTTSClient{options: options}
}

func (c *EdgeTTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.synthesizeMP3(ctx, text, &buf); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, nil
	}
	return decodeMP3(&buf)
}

// SynthesizeStream decodes the mp3 stream incrementally through a pipe, so
// PCM chunks reach audioData while later websocket frames are still in
// flight.
func (c *EdgeTTSClient) SynthesizeStream(ctx context.Context, text string, audioData chan<- []byte) error {
	defer close(audioData)

	parts := c.textParts(text)
	if len(parts) == 0 {
		return nil
	}
	return c.streamDecoded(ctx, func(w io.Writer) error {
		return c.streamParts(ctx, parts, w)
	}, audioData)
}

// streamDecoded pipes the mp3 bytes emitted by produce through an
// incremental decoder and forwards mono PCM chunks to audioData. The pipe
// reader is closed on every return path, so a producer blocked in a pipe
// write always unblocks once the consumer is done.
func (c *EdgeTTSClient) streamDecoded(ctx context.Context, produce func(io.Writer) error, audioData chan<- []byte) error {
	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		pw.CloseWithError(produce(pw))
	}()

	decoder, err := mp3.NewDecoder(pr)
	if err != nil {
		return wrapSynthesisErr(err)
	}

	// go-mp3 always emits interleaved stereo frames; read whole frames and
	// downmix before forwarding.
	buf := make([]byte, 16384)
	var carry []byte
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			usable := len(data) - len(data)%4
			carry = append([]byte(nil), data[usable:]...)
			if usable > 0 {
				select {
				case audioData <- downmixStereo(data[:usable]):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapSynthesisErr(err)
		}
	}
}

// synthesizeMP3 writes the raw mp3 stream for text to w, splitting the text
// into service-sized requests when needed.
func (c *EdgeTTSClient) synthesizeMP3(ctx context.Context, text string, w io.Writer) error {
	return c.streamParts(ctx, c.textParts(text), w)
}

func (c *EdgeTTSClient) textParts(text string) [][]byte {
	return splitTextByByteLength(
		escapeSSML(removeIncompatibleCharacters(text)),
		c.maxMessageSize(),
	)
}

func (c *EdgeTTSClient) streamParts(ctx context.Context, parts [][]byte, w io.Writer) error {
	for _, part := range parts {
		if err := c.synthesizePart(ctx, part, w); err != nil {
			return err
		}
	}
	return nil
}

func (c *EdgeTTSClient) synthesizePart(ctx context.Context, part []byte, w io.Writer) error {
	conn, _, err := c.dialer.DialContext(ctx, edgeWssEndpoint+"&ConnectionId="+connectID(), edgeHeaders())
	if err != nil {
		return fmt.Errorf("%w: dial edge endpoint: %v", ErrSynthesis, err)
	}
	defer conn.Close()

	now := edgeTimestamp()
	if err := conn.WriteMessage(websocket.TextMessage, speechConfigMessage(now)); err != nil {
		return fmt.Errorf("%w: send speech config: %v", ErrSynthesis, err)
	}
	ssml := makeSSML(string(part), c.options.Voice, c.options.Language)
	if err := conn.WriteMessage(websocket.TextMessage, ssmlMessage(now, ssml)); err != nil {
		return fmt.Errorf("%w: send ssml: %v", ErrSynthesis, err)
	}

	audioWasReceived := false
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read edge response: %v", ErrSynthesis, err)
		}
		switch msgType {
		case websocket.TextMessage:
			headers, _ := parseTextMessage(message)
			if headers["Path"] == pathTurnEnd {
				if !audioWasReceived {
					return fmt.Errorf("%w: no audio was received, verify the voice name", ErrSynthesis)
				}
				return nil
			}
		case websocket.BinaryMessage:
			payload, err := binaryAudioPayload(message)
			if err != nil {
				return err
			}
			if len(payload) == 0 {
				continue
			}
			if _, err := w.Write(payload); err != nil {
				return err
			}
			audioWasReceived = true
		}
	}
}

func (c *EdgeTTSClient) maxMessageSize() int {
	websocketMaxSize := 1 << 16
	overhead := len(ssmlMessage(edgeTimestamp(), makeSSML("", c.options.Voice, c.options.Language))) + 50
	return websocketMaxSize - overhead
}

// Close is a no-op; connections are scoped to single requests.
func (c *EdgeTTSClient) Close() error {
	return nil
}

func speechConfigMessage(timestamp string) []byte {
	return []byte(
		"X-Timestamp:" + timestamp + "\r\n" +
			"Content-Type:application/json; charset=utf-8\r\n" +
			"Path:speech.config\r\n\r\n" +
			`{"context":{"synthesis":{"audio":{"metadataoptions":` +
			`{"sentenceBoundaryEnabled":false,"wordBoundaryEnabled":false},` +
			`"outputFormat":"` + edgeOutputFormat + `"}}}}` + "\r\n",
	)
}

func ssmlMessage(timestamp, ssml string) []byte {
	return []byte(
		"X-RequestId:" + connectID() + "\r\n" +
			"Content-Type:application/ssml+xml\r\n" +
			"X-Timestamp:" + timestamp + "Z\r\n" +
			"Path:ssml\r\n\r\n" +
			ssml,
	)
}

func makeSSML(text, voice, language string) string {
	return "<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='" + language + "'>" +
		"<voice name='" + voice + "'>" +
		"<prosody pitch='+0Hz' rate='+0%' volume='+0%'>" + text + "</prosody>" +
		"</voice></speak>"
}

func edgeHeaders() http.Header {
	header := make(http.Header)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("Origin", "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold")
	header.Set("Accept-Encoding", "gzip, deflate, br")
	header.Set("Accept-Language", "en-US,en;q=0.9")
	header.Set("User-Agent", edgeUserAgent)
	return header
}

func connectID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT-0700 (MST)")
}

// parseTextMessage splits a text frame into its headers and body. Frames use
// CRLF header lines terminated by a blank line.
func parseTextMessage(data []byte) (map[string]string, []byte) {
	headers := make(map[string]string)
	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return headers, nil
	}
	for _, line := range bytes.Split(data[:headerEnd], []byte("\r\n")) {
		header := bytes.SplitN(line, []byte(":"), 2)
		if len(header) == 2 {
			headers[string(bytes.TrimSpace(header[0]))] = string(bytes.TrimSpace(header[1]))
		}
	}
	return headers, data[headerEnd+4:]
}

// binaryAudioPayload extracts the audio bytes from a binary frame: a 2-byte
// big-endian header length, the headers, then the payload.
func binaryAudioPayload(message []byte) ([]byte, error) {
	if len(message) < 2 {
		return nil, fmt.Errorf("%w: binary message is missing the header length", ErrSynthesis)
	}
	headerLength := int(binary.BigEndian.Uint16(message[:2]))
	if len(message) < headerLength+2 {
		return nil, fmt.Errorf("%w: binary message is shorter than its header", ErrSynthesis)
	}
	return message[headerLength+2:], nil
}

// decodeMP3 converts a complete mp3 stream to 16-bit mono little-endian PCM.
func decodeMP3(r io.Reader) ([]byte, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, wrapSynthesisErr(fmt.Errorf("decode mp3: %v", err))
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, wrapSynthesisErr(err)
	}
	return downmixStereo(pcm[:len(pcm)-len(pcm)%4]), nil
}

// downmixStereo averages interleaved stereo int16 frames into mono. go-mp3
// decodes every stream to stereo, even mono sources.
func downmixStereo(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4 : i*4+2]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2 : i*4+4]))
		mono := int16((int32(left) + int32(right)) / 2)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(mono))
	}
	return out
}

func wrapSynthesisErr(err error) error {
	if errors.Is(err, ErrSynthesis) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSynthesis, err)
}
