package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	homedir "github.com/mitchellh/go-homedir"
)

func validConfig() Config {
	return Config{
		Backend:      BackendYandex,
		Voice:        "marina",
		Language:     "en-US",
		SampleRateHz: 44100,
		Server:       "tts.api.cloud.yandex.net:443",
		UseSSL:       true,
	}
}

func TestLoadAcceptsDefaults(t *testing.T) {
	cfg, err := Load(validConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SampleRateHz != 44100 {
		t.Errorf("sample rate changed: got %d", cfg.SampleRateHz)
	}
	if cfg.OutputDevice != nil {
		t.Error("expected nil output device for default selection")
	}
}

func TestLoadRejectsNonPositiveSampleRate(t *testing.T) {
	for _, rate := range []int{0, -1, -44100} {
		c := validConfig()
		c.SampleRateHz = rate
		if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("sample rate %d: got %v, want ErrInvalidArgument", rate, err)
		}
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	c := validConfig()
	c.Backend = "riva"
	if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestLoadRejectsEdgeWithForeignSampleRate(t *testing.T) {
	c := validConfig()
	c.Backend = BackendEdge
	c.Voice = "en-US-AriaNeural"
	c.SampleRateHz = 44100
	if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}

	c.SampleRateHz = EdgeSampleRateHz
	if _, err := Load(c); err != nil {
		t.Errorf("edge at %d Hz should be accepted, got %v", EdgeSampleRateHz, err)
	}
}

func TestLoadRejectsEmptyVoiceAndLanguage(t *testing.T) {
	c := validConfig()
	c.Voice = ""
	if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty voice: got %v, want ErrInvalidArgument", err)
	}

	c = validConfig()
	c.Language = ""
	if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty language: got %v, want ErrInvalidArgument", err)
	}
}

func TestLoadRejectsEmptyServerForYandex(t *testing.T) {
	c := validConfig()
	c.Server = ""
	if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestLoadRejectsNegativeDeviceIndex(t *testing.T) {
	c := validConfig()
	idx := -2
	c.OutputDevice = &idx
	if _, err := Load(c); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestLoadExpandsOutputPath(t *testing.T) {
	c := validConfig()
	c.Output = "~/synthesized.wav"

	cfg, err := Load(c)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	home, err := homedir.Dir()
	if err != nil {
		t.Fatalf("resolve home dir: %v", err)
	}
	want := filepath.Join(home, "synthesized.wav")
	if cfg.Output != want {
		t.Errorf("output path not expanded: got %q, want %q", cfg.Output, want)
	}
	if strings.Contains(cfg.Output, "~") {
		t.Errorf("output path still contains a tilde: %q", cfg.Output)
	}
}

func TestLoadKeepsRelativeOutputPath(t *testing.T) {
	c := validConfig()
	c.Output = "out/audio.wav"

	cfg, err := Load(c)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output != "out/audio.wav" {
		t.Errorf("plain path should pass through, got %q", cfg.Output)
	}
}
