package orchestrator

import (
	"context"

	"github.com/scribe-audio/scribed/internal/domain"
)

// ─── Stage Adapter Interfaces ───────────────────────────────────────────────
// Each interface wraps one external capability. The orchestrator depends
// only on these; concrete implementations live under internal/infra and
// classify their own failures as domain.Transient or domain.Fatal.

// FetchRequest carries everything a fetcher variant needs.
type FetchRequest struct {
	URL     string
	Kind    domain.SourceKind
	WorkDir string
}

// Fetcher downloads source media to a local file inside WorkDir.
// Variant selection (plain HTTP vs. yt-dlp) happens behind this
// interface, keyed on the request's source kind.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (localPath string, err error)
}

// AudioExtractor converts downloaded media into the fixed sample format
// the transcriber expects (mono 16 kHz PCM WAV).
type AudioExtractor interface {
	Extract(ctx context.Context, mediaPath, workDir string) (audioPath string, err error)
}

// TranscribeRequest selects model and inference preferences for one run.
type TranscribeRequest struct {
	AudioPath   string
	Model       string
	Language    string
	Device      string
	ComputeType string
	WorkDir     string
}

// Transcription is the speech-to-text output.
type Transcription struct {
	Text     string
	Language string
}

// Transcriber runs speech-to-text inference. It may be slow and
// CPU/GPU-bound; the orchestrator treats it as a black box.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (*Transcription, error)
}

// ArtifactPublisher uploads a rendered transcript and resolves stored
// locations into caller-usable download URLs.
type ArtifactPublisher interface {
	Publish(ctx context.Context, taskID, localPath string, format domain.OutputFormat) (domain.Artifact, error)
	ResolveURL(ctx context.Context, location string) (string, error)
}

// Repository is the durable task record store. UpdateTaskState must be
// atomic per task id and return the authoritative post-update record;
// it rejects transitions out of terminal states.
type Repository interface {
	InsertTask(ctx context.Context, task domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, status domain.TaskStatus, limit int) ([]domain.Task, error)
	ListPending(ctx context.Context, limit int) ([]domain.Task, error)
	UpdateTaskState(ctx context.Context, id string, tr domain.Transition) (*domain.Task, error)
	InsertArtifact(ctx context.Context, taskID string, a domain.Artifact) error
	FailInterrupted(ctx context.Context) (int, error)
}
