package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// loadFromString writes yaml to a temp file and loads it, failing the
// test on error.
func loadFromString(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, yaml)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func loadStringErr(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctl.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

func TestLoad_Valid(t *testing.T) {
	yaml := `
endpoint: "ws://localhost:8080/ws/docs"
doc: notes
auth:
  mode: apikey
  key_env: MIRRORMAP_KEY
timeouts:
  dial: 5s
`
	cfg := loadFromString(t, yaml)

	if cfg.Endpoint != "ws://localhost:8080/ws/docs" {
		t.Errorf("endpoint: got %q", cfg.Endpoint)
	}
	if cfg.Doc != "notes" {
		t.Errorf("doc: got %q", cfg.Doc)
	}
	if cfg.Auth.Mode != "apikey" {
		t.Errorf("auth mode: got %q", cfg.Auth.Mode)
	}
	if cfg.Timeouts.Dial != 5*time.Second {
		t.Errorf("dial timeout: got %v", cfg.Timeouts.Dial)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, `endpoint: "ws://localhost:8080/ws/docs"`)

	if cfg.Timeouts.Dial != DefaultDialTimeout {
		t.Errorf("default dial timeout: got %v, want %v", cfg.Timeouts.Dial, DefaultDialTimeout)
	}
	if cfg.Timeouts.Scrape != DefaultScrapeTimeout {
		t.Errorf("default scrape timeout: got %v, want %v", cfg.Timeouts.Scrape, DefaultScrapeTimeout)
	}
	if cfg.Auth.Header != DefaultAuthHeader {
		t.Errorf("default auth header: got %q, want %q", cfg.Auth.Header, DefaultAuthHeader)
	}
}

func TestLoad_BadScheme(t *testing.T) {
	_, err := loadStringErr(t, `endpoint: "http://localhost:8080"`)
	if err == nil {
		t.Fatal("expected error for http endpoint, got nil")
	}
}

func TestLoad_UnknownAuthMode(t *testing.T) {
	yaml := `
endpoint: "ws://localhost:8080/ws/docs"
auth:
  mode: magictoken
`
	_, err := loadStringErr(t, yaml)
	if err == nil {
		t.Fatal("expected error for unknown auth mode, got nil")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_CTL_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_CTL_KEY"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
}

func TestAuthConfig_Key_Empty(t *testing.T) {
	a := AuthConfig{Mode: "apikey"}
	if got := a.Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

func TestMetricsURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
		wantErr  bool
	}{
		{"ws", "ws://localhost:8080/ws/docs", "http://localhost:8080/metrics", false},
		{"wss", "wss://sync.example.com/ws/docs", "https://sync.example.com/metrics", false},
		{"bad scheme", "ftp://localhost", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Endpoint: tc.endpoint}
			got, err := cfg.MetricsURL()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("MetricsURL: %v", err)
			}
			if got != tc.want {
				t.Errorf("MetricsURL: got %q, want %q", got, tc.want)
			}
		})
	}
}
