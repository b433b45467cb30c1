// Package health provides periodic component health checks: database,
// external tools, work directory, and artifact storage.
package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/scribe-audio/scribed/internal/infra/metrics"
	"github.com/scribe-audio/scribed/internal/infra/proc"
	"github.com/scribe-audio/scribed/internal/infra/sqlite"
)

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// StoragePinger is the storage backend's reachability probe.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// Deps names everything the standard checks touch.
type Deps struct {
	DB            *sqlite.DB
	WorkDir       string
	FFmpegBinary  string
	YtDlpBinary   string
	WhisperBinary string

	// Storage is nil for the local backend, which has no remote side.
	Storage StoragePinger
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker with the standard component checks.
func NewChecker(deps Deps) *Checker {
	checks := []Check{
		{
			Name: "sqlite",
			CheckFn: func(ctx context.Context) error {
				return deps.DB.Ping()
			},
		},
		{
			Name: "work_dir",
			CheckFn: func(ctx context.Context) error {
				return checkWritableDir(deps.WorkDir)
			},
		},
		{
			Name:    "ffmpeg",
			CheckFn: binaryCheck(deps.FFmpegBinary, "ffmpeg"),
		},
		{
			Name:    "yt-dlp",
			CheckFn: binaryCheck(deps.YtDlpBinary, "yt-dlp"),
		},
		{
			Name: "whisper",
			CheckFn: func(ctx context.Context) error {
				if deps.WhisperBinary == "" {
					return fmt.Errorf("whisper binary not configured")
				}
				if _, err := os.Stat(deps.WhisperBinary); err == nil {
					return nil
				}
				_, err := proc.LookPath(deps.WhisperBinary)
				return err
			},
		},
	}
	if deps.Storage != nil {
		checks = append(checks, Check{
			Name: "storage",
			CheckFn: func(ctx context.Context) error {
				return deps.Storage.Ping(ctx)
			},
		})
	}

	return &Checker{
		interval: 60 * time.Second,
		checks:   checks,
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func binaryCheck(configured, fallback string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		name := configured
		if name == "" {
			name = fallback
		}
		if _, err := os.Stat(name); err == nil {
			return nil
		}
		_, err := proc.LookPath(name)
		return err
	}
}

func checkWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("work dir not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("work dir not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}
