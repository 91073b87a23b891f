package tts

import (
	"testing"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

func TestBuildRequestMarshalsOptions(t *testing.T) {
	c := &YandexTTSClient{options: Options{Voice: "marina", Language: "ru-RU", SampleRateHz: 22050}}
	req := c.buildRequest("hello there")

	if got := req.GetText(); got != "hello there" {
		t.Errorf("text = %q, want %q", got, "hello there")
	}

	voice := ""
	for _, hint := range req.GetHints() {
		if v := hint.GetVoice(); v != "" {
			voice = v
		}
	}
	if voice != "marina" {
		t.Errorf("voice hint = %q, want marina", voice)
	}

	raw := req.GetOutputAudioSpec().GetRawAudio()
	if raw == nil {
		t.Fatal("raw audio output spec missing")
	}
	if got := raw.GetSampleRateHertz(); got != 22050 {
		t.Errorf("sample rate = %d, want 22050", got)
	}
	if got := raw.GetAudioEncoding(); got != tts.RawAudio_LINEAR16_PCM {
		t.Errorf("encoding = %v, want LINEAR16_PCM", got)
	}
}
