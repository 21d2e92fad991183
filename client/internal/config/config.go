package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults used for fields the config file leaves unset.
const (
	DefaultDialTimeout   = 10 * time.Second
	DefaultScrapeTimeout = 10 * time.Second
	DefaultAuthHeader    = "X-API-Key"
)

// Config holds every ctl setting. Fields map 1:1 to the YAML file;
// command-line flags override whatever Load produced.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the server's sync endpoint,
	// including the document path prefix, e.g. ws://localhost:8080/ws/docs.
	Endpoint string `yaml:"endpoint"`

	// Doc is the document to attach to.
	Doc string `yaml:"doc"`

	// Auth configures how ctl authenticates to the server.
	Auth AuthConfig `yaml:"auth"`

	// Timeouts bound the dial handshake and metrics scrapes.
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// AuthConfig specifies the client's authentication mode.
type AuthConfig struct {
	// Mode selects the scheme: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name the key is sent in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment. Returns empty
// string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// TimeoutConfig holds per-operation deadlines.
type TimeoutConfig struct {
	// Dial bounds the websocket dial and attach handshake.
	Dial time.Duration `yaml:"dial"`

	// Scrape bounds one /metrics fetch for the stats command.
	Scrape time.Duration `yaml:"scrape"`
}

// MetricsURL derives the server's /metrics address from the websocket
// endpoint: scheme ws→http (wss→https), path replaced.
func (c *Config) MetricsURL() (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("config: parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("config: endpoint scheme %q is not ws or wss", u.Scheme)
	}
	u.Path = "/metrics"
	u.RawQuery = ""
	return u.String(), nil
}

// Load parses the YAML config file at path. Optional fields that are
// absent are filled from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values, for runs
// configured entirely by flags.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{Header: DefaultAuthHeader},
		Timeouts: TimeoutConfig{
			Dial:   DefaultDialTimeout,
			Scrape: DefaultScrapeTimeout,
		},
	}
}

// validate checks structural constraints on what the file provided.
// Required fields are enforced later, after flags have been merged in.
func validate(cfg *Config) error {
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
		}
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
	if cfg.Timeouts.Dial <= 0 {
		return fmt.Errorf("timeouts.dial must be positive")
	}
	if cfg.Timeouts.Scrape <= 0 {
		return fmt.Errorf("timeouts.scrape must be positive")
	}
	return nil
}
