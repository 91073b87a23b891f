package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
)

// ErrInvalidArgument reports unusable command line input. It is always
// surfaced before any device or network resource is acquired.
var ErrInvalidArgument = errors.New("invalid argument")

// Supported synthesis backends.
const (
	BackendYandex = "yandex"
	BackendEdge   = "edge"
)

// EdgeSampleRateHz is the only rate the edge read-aloud endpoint serves.
const EdgeSampleRateHz = 24000

// Config is the immutable per-session configuration, resolved once at
// startup from flags and the environment.
type Config struct {
	Backend      string
	Voice        string
	Language     string
	SampleRateHz int
	Output       string
	OutputDevice *int // nil means the system default device
	ListDevices  bool
	ListVoices   bool
	Stream       bool

	Server  string
	SSLCert string
	UseSSL  bool

	ApiKey   string
	FolderID string
}

// Load validates raw flag values and resolves the environment half of the
// configuration. Credentials for the gRPC backend come from the process
// environment, optionally seeded from a .env file in the working directory.
func Load(c Config) (*Config, error) {
	if c.SampleRateHz <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidArgument, c.SampleRateHz)
	}
	switch c.Backend {
	case BackendYandex, BackendEdge:
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidArgument, c.Backend)
	}
	if c.Backend == BackendEdge && c.SampleRateHz != EdgeSampleRateHz {
		return nil, fmt.Errorf("%w: the edge backend only serves %d Hz audio", ErrInvalidArgument, EdgeSampleRateHz)
	}
	if c.Voice == "" {
		return nil, fmt.Errorf("%w: voice must not be empty", ErrInvalidArgument)
	}
	if c.Language == "" {
		return nil, fmt.Errorf("%w: language code must not be empty", ErrInvalidArgument)
	}
	if c.Backend == BackendYandex && c.Server == "" {
		return nil, fmt.Errorf("%w: server address must not be empty", ErrInvalidArgument)
	}
	if c.OutputDevice != nil && *c.OutputDevice < 0 {
		return nil, fmt.Errorf("%w: output device index must not be negative, got %d", ErrInvalidArgument, *c.OutputDevice)
	}

	if c.Output != "" {
		expanded, err := homedir.Expand(c.Output)
		if err != nil {
			return nil, fmt.Errorf("%w: expand output path %q: %v", ErrInvalidArgument, c.Output, err)
		}
		c.Output = expanded
	}

	// A missing .env file is fine, credentials may be set directly in the
	// environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if c.ApiKey == "" {
		c.ApiKey = os.Getenv("API_KEY")
	}
	if c.FolderID == "" {
		c.FolderID = os.Getenv("FOLDER_ID")
	}

	return &c, nil
}
