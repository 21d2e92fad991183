package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults used for fields the config file leaves unset.
const (
	DefaultHTTPPort       = 8080
	DefaultAuthHeader     = "X-API-Key"
	DefaultDocTTL         = 30 * time.Minute
	DefaultFlushInterval  = 30 * time.Second
	DefaultNotifyCooldown = 5 * time.Minute
)

// Config holds all server-side settings. Fields map 1:1 to the YAML file.
type Config struct {
	// HTTPPort is the port the REST API, /metrics, and websocket hub
	// listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures request authentication for REST and websocket.
	Auth AuthConfig `yaml:"auth"`

	// Doc configures document lifetime and persistence.
	Doc DocConfig `yaml:"doc"`

	// Notify configures webhook delivery for document lifecycle events.
	Notify NotifyConfig `yaml:"notify"`
}

// AuthConfig configures incoming request authentication.
type AuthConfig struct {
	// Mode selects the scheme: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the
	// expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name clients send the key in.
	Header string `yaml:"header"`
}

// Key resolves the expected API key from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the header name to check, falling back to
// "X-API-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// DocConfig configures document lifetime and persistence.
type DocConfig struct {
	// TTL is how long a document with no attached sessions stays
	// resident before eviction. Zero disables eviction.
	TTL time.Duration `yaml:"ttl"`

	// PersistPath is the SQLite database file document snapshots are
	// flushed to. Empty disables persistence.
	PersistPath string `yaml:"persist_path"`

	// FlushInterval is how often changed documents are written out.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// NotifyConfig configures lifecycle webhooks.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`

	// Cooldown suppresses repeat notifications for the same document
	// and event within this window.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig describes a single webhook target.
type WebhookConfig struct {
	// Name identifies the target in logs.
	Name string `yaml:"name"`

	// Type selects the payload shape: http (generic JSON, the default)
	// or slack.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the
	// webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL resolves the delivery URL from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load parses the YAML config file at path. Optional fields that are
// absent take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config with every default filled in.
func defaults() *Config {
	return &Config{
		HTTPPort: DefaultHTTPPort,
		Auth:     AuthConfig{Header: DefaultAuthHeader},
		Doc: DocConfig{
			TTL:           DefaultDocTTL,
			FlushInterval: DefaultFlushInterval,
		},
		Notify: NotifyConfig{Cooldown: DefaultNotifyCooldown},
	}
}

// validate enforces required fields and value ranges.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", cfg.HTTPPort)
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "apikey" && cfg.Auth.KeyEnv == "" {
		return fmt.Errorf("auth.key_env is required when auth.mode is apikey")
	}
	if cfg.Doc.TTL < 0 {
		return fmt.Errorf("doc.ttl must not be negative")
	}
	if cfg.Doc.PersistPath != "" && cfg.Doc.FlushInterval <= 0 {
		return fmt.Errorf("doc.flush_interval must be positive when persistence is on")
	}
	for i, wh := range cfg.Notify.Webhooks {
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env is required", i)
		}
		switch wh.Type {
		case "", "http", "slack":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}
	return nil
}
