// Package daemon manages the scribed daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Fetch     FetchConfig     `toml:"fetch"`
	Whisper   WhisperConfig   `toml:"whisper"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// AuthSecret enables HMAC request signing when non-empty.
	AuthSecret string `toml:"auth_secret"`

	// AuthToleranceSec bounds signed-request timestamp skew.
	AuthToleranceSec int `toml:"auth_tolerance_sec"`
}

// PipelineConfig tunes the task orchestrator.
type PipelineConfig struct {
	MaxConcurrent int    `toml:"max_concurrent"`
	QueueDepth    int    `toml:"queue_depth"`
	WorkDir       string `toml:"work_dir"`
	MaxRetries    int    `toml:"max_retries"`
	RetryBaseMS   int    `toml:"retry_base_ms"`
	RetryMaxMS    int    `toml:"retry_max_ms"`
}

// FetchConfig controls media downloading.
type FetchConfig struct {
	Proxy        string `toml:"proxy"`
	TimeoutSec   int    `toml:"timeout_sec"`
	YtDlpBinary  string `toml:"ytdlp_binary"`
	CookiesFile  string `toml:"cookies_file"`
	PlayerClient string `toml:"player_client"`
	POToken      string `toml:"po_token"`
}

// WhisperConfig controls speech-to-text.
type WhisperConfig struct {
	Binary       string `toml:"binary"`
	ModelDir     string `toml:"model_dir"`
	DefaultModel string `toml:"default_model"`
	Device       string `toml:"device"`
	ComputeType  string `toml:"compute_type"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// StorageConfig selects the artifact backend: "minio" or "local".
type StorageConfig struct {
	Backend string `toml:"backend"`

	LocalDir string `toml:"local_dir"`

	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioBucket    string `toml:"minio_bucket"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`
	PresignSec     int    `toml:"presign_sec"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	home := ScribedHome()
	return Config{
		API: APIConfig{
			Host:             "127.0.0.1",
			Port:             8333,
			CORSOrigins:      []string{"*"},
			AuthToleranceSec: 300,
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: 2,
			QueueDepth:    64,
			WorkDir:       filepath.Join(home, "work"),
			MaxRetries:    3,
			RetryBaseMS:   1000,
			RetryMaxMS:    30000,
		},
		Fetch: FetchConfig{
			TimeoutSec:   600,
			PlayerClient: "default",
		},
		Whisper: WhisperConfig{
			ModelDir:     filepath.Join(home, "models"),
			DefaultModel: "base",
		},
		Storage: StorageConfig{
			Backend:     "local",
			LocalDir:    filepath.Join(home, "artifacts"),
			MinioBucket: "transcripts",
			PresignSec:  3600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads config from $SCRIBED_HOME/config.toml, falling back
// to defaults. A .env file in the working directory is loaded first so
// secrets can stay out of the config file; environment variables win
// over file values.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	path := filepath.Join(ScribedHome(), "config.toml")

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// SaveConfig writes the config to $SCRIBED_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(ScribedHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// applyEnvOverrides layers environment variables over file config.
// Only secrets and connection settings are overridable this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCRIBED_AUTH_SECRET"); v != "" {
		cfg.API.AuthSecret = v
	}
	if v := os.Getenv("SCRIBED_PROXY"); v != "" {
		cfg.Fetch.Proxy = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Storage.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.Storage.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.MinioUseSSL = b
		}
	}
	if v := os.Getenv("SCRIBED_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}
}

// RetryBaseDelay returns the configured backoff base.
func (c PipelineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseMS) * time.Millisecond
}

// RetryMaxDelay returns the configured backoff cap.
func (c PipelineConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxMS) * time.Millisecond
}

// ScribedHome returns the scribed data directory.
func ScribedHome() string {
	if env := os.Getenv("SCRIBED_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scribed")
}
