package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("SCRIBED_HOME", t.TempDir())

	cfg := DefaultConfig()
	if cfg.API.Port != 8333 {
		t.Errorf("default port = %d, want 8333", cfg.API.Port)
	}
	if cfg.Pipeline.MaxConcurrent != 2 {
		t.Errorf("default max_concurrent = %d, want 2", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Pipeline.RetryBaseDelay() != time.Second {
		t.Errorf("retry base = %v, want 1s", cfg.Pipeline.RetryBaseDelay())
	}
	if cfg.Pipeline.RetryMaxDelay() != 30*time.Second {
		t.Errorf("retry max = %v, want 30s", cfg.Pipeline.RetryMaxDelay())
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("default storage backend = %q, want local", cfg.Storage.Backend)
	}
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("SCRIBED_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8333 {
		t.Errorf("port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCRIBED_HOME", home)

	toml := `
[api]
host = "0.0.0.0"
port = 9000

[pipeline]
max_concurrent = 8

[whisper]
default_model = "large-v3"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 {
		t.Errorf("api = %s:%d, want file values", cfg.API.Host, cfg.API.Port)
	}
	if cfg.Pipeline.MaxConcurrent != 8 {
		t.Errorf("max_concurrent = %d, want 8", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Whisper.DefaultModel != "large-v3" {
		t.Errorf("default model = %q, want large-v3", cfg.Whisper.DefaultModel)
	}
	// Untouched sections keep defaults.
	if cfg.Pipeline.QueueDepth != 64 {
		t.Errorf("queue_depth = %d, want default 64", cfg.Pipeline.QueueDepth)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCRIBED_HOME", home)
	t.Setenv("SCRIBED_AUTH_SECRET", "from-env")
	t.Setenv("MINIO_ENDPOINT", "minio.internal:9000")
	t.Setenv("SCRIBED_PORT", "7777")

	toml := `
[api]
port = 9000
auth_secret = "from-file"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.AuthSecret != "from-env" {
		t.Errorf("auth secret = %q, want env value", cfg.API.AuthSecret)
	}
	if cfg.Storage.MinioEndpoint != "minio.internal:9000" {
		t.Errorf("minio endpoint = %q, want env value", cfg.Storage.MinioEndpoint)
	}
	if cfg.API.Port != 7777 {
		t.Errorf("port = %d, want env value 7777", cfg.API.Port)
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	t.Setenv("SCRIBED_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Whisper.DefaultModel = "medium"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if loaded.Whisper.DefaultModel != "medium" {
		t.Errorf("reloaded model = %q, want medium", loaded.Whisper.DefaultModel)
	}
}
