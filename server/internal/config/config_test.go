package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

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
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

func TestLoad_Valid(t *testing.T) {
	yaml := `
http_port: 9090
auth:
  mode: apikey
  key_env: MIRRORMAP_SERVER_KEY
  header: X-Sync-Key
doc:
  ttl: 10m
  persist_path: /var/lib/mirrormap/docs.db
  flush_interval: 15s
notify:
  cooldown: 2m
  webhooks:
    - name: ops
      type: slack
      url_env: OPS_WEBHOOK_URL
`
	cfg := loadFromString(t, yaml)

	if cfg.HTTPPort != 9090 {
		t.Errorf("http_port: got %d", cfg.HTTPPort)
	}
	if cfg.Auth.Mode != "apikey" || cfg.Auth.Header != "X-Sync-Key" {
		t.Errorf("auth: got %+v", cfg.Auth)
	}
	if cfg.Doc.TTL != 10*time.Minute {
		t.Errorf("doc.ttl: got %v", cfg.Doc.TTL)
	}
	if cfg.Doc.PersistPath != "/var/lib/mirrormap/docs.db" {
		t.Errorf("doc.persist_path: got %q", cfg.Doc.PersistPath)
	}
	if len(cfg.Notify.Webhooks) != 1 || cfg.Notify.Webhooks[0].Name != "ops" {
		t.Errorf("notify.webhooks: got %+v", cfg.Notify.Webhooks)
	}
	if cfg.Notify.Webhooks[0].Type != "slack" {
		t.Errorf("webhook type: got %q, want slack", cfg.Notify.Webhooks[0].Type)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, `auth: {mode: none}`)

	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("default http_port: got %d, want %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Auth.Header != DefaultAuthHeader {
		t.Errorf("default auth header: got %q, want %q", cfg.Auth.Header, DefaultAuthHeader)
	}
	if cfg.Doc.TTL != DefaultDocTTL {
		t.Errorf("default doc.ttl: got %v, want %v", cfg.Doc.TTL, DefaultDocTTL)
	}
	if cfg.Doc.FlushInterval != DefaultFlushInterval {
		t.Errorf("default doc.flush_interval: got %v, want %v", cfg.Doc.FlushInterval, DefaultFlushInterval)
	}
	if cfg.Notify.Cooldown != DefaultNotifyCooldown {
		t.Errorf("default notify.cooldown: got %v, want %v", cfg.Notify.Cooldown, DefaultNotifyCooldown)
	}
}

func TestLoad_BadPort(t *testing.T) {
	_, err := loadStringErr(t, `http_port: 123456`)
	if err == nil {
		t.Fatal("expected error for out-of-range port, got nil")
	}
}

func TestLoad_ApikeyRequiresKeyEnv(t *testing.T) {
	_, err := loadStringErr(t, `auth: {mode: apikey}`)
	if err == nil {
		t.Fatal("expected error for apikey mode without key_env, got nil")
	}
}

func TestLoad_WebhookRequiresURLEnv(t *testing.T) {
	yaml := `
notify:
  webhooks:
    - name: ops
`
	_, err := loadStringErr(t, yaml)
	if err == nil {
		t.Fatal("expected error for webhook without url_env, got nil")
	}
}

func TestLoad_WebhookUnknownType(t *testing.T) {
	yaml := `
notify:
  webhooks:
    - name: ops
      type: carrier-pigeon
      url_env: OPS_WEBHOOK_URL
`
	_, err := loadStringErr(t, yaml)
	if err == nil {
		t.Fatal("expected error for unknown webhook type, got nil")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_SERVER_KEY"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
}

func TestAuthConfig_EffectiveHeader(t *testing.T) {
	if got := (AuthConfig{}).EffectiveHeader(); got != DefaultAuthHeader {
		t.Errorf("EffectiveHeader(): got %q, want %q", got, DefaultAuthHeader)
	}
	if got := (AuthConfig{Header: "X-Sync-Key"}).EffectiveHeader(); got != "X-Sync-Key" {
		t.Errorf("EffectiveHeader(): got %q, want %q", got, "X-Sync-Key")
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEST_HOOK_URL", "https://hooks.example.com/mirrormap")
	w := WebhookConfig{Name: "ops", URLEnv: "TEST_HOOK_URL"}
	if got := w.URL(); got != "https://hooks.example.com/mirrormap" {
		t.Errorf("URL(): got %q", got)
	}
}

func TestWatch_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("http_port: 8080\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("http_port: 9191\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.HTTPPort != 9191 {
			t.Errorf("reloaded http_port: got %d, want 9191", cfg.HTTPPort)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatch_KeepsPreviousOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("http_port: 8080\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("http_port: not-a-port\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("onChange called with invalid config: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
		// No reload fired — previous config stays active.
	}
}
