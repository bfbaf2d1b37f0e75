package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendStub   = "stub"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Database DatabaseConfig `yaml:"database"`

	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
}

type ServerConfig struct {
	Port uint16 `yaml:"port" env:"PORT"`
	// RequestTimeout bounds a single backend call. Zero disables it.
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`
}

type BackendConfig struct {
	Kind    string `yaml:"kind" env:"BACKEND_KIND"`
	BaseURL string `yaml:"baseURL" env:"BACKEND_URL"`
	Model   string `yaml:"model" env:"BACKEND_MODEL"`
	APIKey  string `yaml:"apiKey,omitempty" env:"BACKEND_API_KEY"`
	// KeepAlive is how long ollama keeps the model loaded after a call. Zero
	// leaves it to the server.
	KeepAlive time.Duration `yaml:"keepAlive" env:"BACKEND_KEEP_ALIVE"`
	// MaxConcurrent bounds in-flight backend calls. Zero is unbounded.
	MaxConcurrent int64 `yaml:"maxConcurrent" env:"BACKEND_MAX_CONCURRENT"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
}

type DatabaseConfig struct {
	// URL enables the usage ledger when set.
	URL string `yaml:"url,omitempty" env:"DB_CONNECTION_STRING"`
}

// DefaultConfig returns the default config.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8083,
			RequestTimeout: 2 * time.Minute,
		},
		Backend: BackendConfig{
			Kind:          BackendOllama,
			BaseURL:       "http://127.0.0.1:11434",
			Model:         "gemma3:270m",
			MaxConcurrent: 4,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},

		LogLevel: "info",
	}
}

// Load reads the config file at path, if any, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		var err error
		if config, err = ReadConfig(path); err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
	}

	if err := config.PopulateFromEnvironment(); err != nil {
		return nil, fmt.Errorf("could not read config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// PopulateFromEnvironment populates the config with values from environment
// variables.
func (c *Config) PopulateFromEnvironment() error {
	return env.Parse(c)
}

// ReadConfig reads a config file from the specified path. Keys the file does
// not set keep their defaults.
func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return config, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port must be set")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.requestTimeout must not be negative")
	}
	if c.Backend.MaxConcurrent < 0 {
		return fmt.Errorf("backend.maxConcurrent must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}

	switch c.Backend.Kind {
	case BackendStub:
		return nil
	case BackendOllama, BackendOpenAI:
	default:
		return fmt.Errorf("unknown backend.kind %q, want %s, %s or %s", c.Backend.Kind, BackendOllama, BackendOpenAI, BackendStub)
	}

	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model must be set")
	}
	if _, err := c.BackendURL(); err != nil {
		return err
	}
	return nil
}

// BackendURL parses the backend base URL.
func (c *Config) BackendURL() (*url.URL, error) {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend.baseURL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend.baseURL %q: want an absolute http(s) URL", c.Backend.BaseURL)
	}
	return u, nil
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
