package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  allowed_origins:
    - "https://dm-placards.fr"
places:
  api_key: "abc"
  place_id: "p1"
  language: "fr"
  timeout: 15s
cache:
  backend: redis
  redis:
    url: "redis://localhost:6379/0"
  ttl: 24h
network:
  probe_timeout: 3s
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Places.APIKey != "abc" || cfg.Places.PlaceID != "p1" {
		t.Errorf("places config not parsed: %+v", cfg.Places)
	}
	if got := cfg.Places.ClientConfig().Timeout; got != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", got)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("backend = %s, want redis", cfg.Cache.Backend)
	}
	if cfg.Cache.TTLDuration() != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", cfg.Cache.TTLDuration())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
places:
  api_key: "abc"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("default backend = %s, want memory", cfg.Cache.Backend)
	}
	if cfg.Cache.TTLDuration() != 24*time.Hour {
		t.Errorf("default ttl = %v, want 24h", cfg.Cache.TTLDuration())
	}
	if cfg.Cache.MaxEntries != 10 {
		t.Errorf("default max entries = %d, want 10", cfg.Cache.MaxEntries)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_PLACES_KEY", "from-env")
	path := writeConfig(t, `
places:
  api_key: "${TEST_PLACES_KEY}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Places.APIKey != "from-env" {
		t.Errorf("api key = %q, want expansion from environment", cfg.Places.APIKey)
	}
}

func TestLoad_EnvFallbackForCredentials(t *testing.T) {
	t.Setenv("GOOGLE_PLACES_API_KEY", "env-key")
	t.Setenv("GOOGLE_PLACE_ID", "env-place")
	path := writeConfig(t, `
server:
  port: 8081
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Places.APIKey != "env-key" || cfg.Places.PlaceID != "env-place" {
		t.Errorf("env fallback not applied: %+v", cfg.Places)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MissingCredentialsIsNotAnError(t *testing.T) {
	os.Unsetenv("GOOGLE_PLACES_API_KEY")
	os.Unsetenv("GOOGLE_PLACE_ID")
	path := writeConfig(t, `
server:
  port: 8082
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("missing credentials must degrade, not error: %v", err)
	}
	if cfg.Places.APIKey != "" {
		t.Errorf("expected empty api key, got %q", cfg.Places.APIKey)
	}
}
