package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scribe-audio/scribed/internal/api"
	"github.com/scribe-audio/scribed/internal/health"
	"github.com/scribe-audio/scribed/internal/infra/audio"
	"github.com/scribe-audio/scribed/internal/infra/fetch"
	_ "github.com/scribe-audio/scribed/internal/infra/metrics" // Register Prometheus metrics
	"github.com/scribe-audio/scribed/internal/infra/proc"
	"github.com/scribe-audio/scribed/internal/infra/sqlite"
	"github.com/scribe-audio/scribed/internal/infra/storage"
	"github.com/scribe-audio/scribed/internal/infra/whisper"
	"github.com/scribe-audio/scribed/internal/orchestrator"
	"github.com/scribe-audio/scribed/internal/telemetry"
)

// Daemon is the scribed runtime. It wires together storage, the stage
// adapters, the orchestrator, health checks, and the HTTP API.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Orch   *orchestrator.Orchestrator
	Server *api.Server
	Health *health.Checker
	Logger *slog.Logger

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New(version string) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, version)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, version string) (*Daemon, error) {
	logger := telemetry.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := sqlite.Open(ScribedHome())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	runner := proc.ExecRunner{}

	// Fetch variants behind one router
	httpFetcher, err := fetch.NewHTTPFetcher(cfg.Fetch.Proxy,
		time.Duration(cfg.Fetch.TimeoutSec)*time.Second)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("http fetcher: %w", err)
	}
	fetcher := &fetch.Router{
		Direct: httpFetcher,
		Platform: fetch.NewYtDlpFetcher(runner, fetch.YtDlpOptions{
			Binary:       cfg.Fetch.YtDlpBinary,
			Proxy:        cfg.Fetch.Proxy,
			CookiesFile:  cfg.Fetch.CookiesFile,
			PlayerClient: cfg.Fetch.PlayerClient,
			POToken:      cfg.Fetch.POToken,
		}),
	}

	extractor := audio.NewExtractor(runner, cfg.Whisper.FFmpegBinary)

	whisperBin := cfg.Whisper.Binary
	if whisperBin == "" {
		found, err := whisper.FindBinary(ScribedHome())
		if err != nil {
			logger.Warn("whisper binary not found; transcription will fail until installed", "error", err)
		} else {
			whisperBin = found
		}
	}
	transcriber := whisper.New(runner, whisperBin, cfg.Whisper.ModelDir)

	// Artifact backend
	var (
		publisher orchestrator.ArtifactPublisher
		pinger    health.StoragePinger
	)
	switch cfg.Storage.Backend {
	case "minio":
		mp, err := storage.NewMinioPublisher(storage.MinioConfig{
			Endpoint:      cfg.Storage.MinioEndpoint,
			AccessKey:     cfg.Storage.MinioAccessKey,
			SecretKey:     cfg.Storage.MinioSecretKey,
			Bucket:        cfg.Storage.MinioBucket,
			UseSSL:        cfg.Storage.MinioUseSSL,
			PresignExpiry: time.Duration(cfg.Storage.PresignSec) * time.Second,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("minio publisher: %w", err)
		}
		ensureCtx, ensureCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mp.EnsureBucket(ensureCtx); err != nil {
			logger.Warn("object storage not ready; publishing will retry", "error", err)
		}
		ensureCancel()
		publisher = mp
		pinger = mp
	default:
		lp, err := storage.NewLocalPublisher(cfg.Storage.LocalDir)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("local publisher: %w", err)
		}
		publisher = lp
	}

	orch := orchestrator.New(orchestrator.Config{
		Repo:               db,
		Fetcher:            fetcher,
		Extractor:          extractor,
		Transcriber:        transcriber,
		Publisher:          publisher,
		SourceClassifier:   fetch.DetectKind,
		WorkDir:            cfg.Pipeline.WorkDir,
		MaxConcurrent:      cfg.Pipeline.MaxConcurrent,
		QueueDepth:         cfg.Pipeline.QueueDepth,
		DefaultModel:       cfg.Whisper.DefaultModel,
		DefaultDevice:      cfg.Whisper.Device,
		DefaultComputeType: cfg.Whisper.ComputeType,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		RetryBaseDelay:     cfg.Pipeline.RetryBaseDelay(),
		RetryMaxDelay:      cfg.Pipeline.RetryMaxDelay(),
		Logger:             logger,
	})

	checker := health.NewChecker(health.Deps{
		DB:            db,
		WorkDir:       cfg.Pipeline.WorkDir,
		FFmpegBinary:  cfg.Whisper.FFmpegBinary,
		YtDlpBinary:   cfg.Fetch.YtDlpBinary,
		WhisperBinary: whisperBin,
		Storage:       pinger,
	})

	srv := api.NewServer(orch, checker, version)
	srv.EnableMetrics()
	if cfg.API.AuthSecret != "" {
		srv.SetAuth(&api.AuthConfig{
			Secret:    cfg.API.AuthSecret,
			Tolerance: time.Duration(cfg.API.AuthToleranceSec) * time.Second,
		})
	}

	return &Daemon{
		Config: cfg,
		DB:     db,
		Orch:   orch,
		Server: srv,
		Health: checker,
		Logger: logger,
	}, nil
}

// Serve starts the orchestrator and HTTP server, blocking until the
// context ends or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.Orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open for the task lifetime
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			d.Logger.Info("shutdown signal received")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	d.Logger.Info("scribed listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	d.Orch.Stop()
	return nil
}

// Close shuts down background services and the database.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
