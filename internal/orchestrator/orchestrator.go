// Package orchestrator is the task orchestration engine. It admits
// transcription requests, runs their pipelines under bounded
// concurrency, persists every state transition before announcing it,
// and fans progress out to live subscribers.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/metrics"
)

// Default configuration values.
const (
	defaultMaxConcurrent = 2
	defaultQueueDepth    = 64
	defaultMaxRetries    = 3
	defaultRetryBase     = 1 * time.Second
	defaultRetryMax      = 30 * time.Second
)

// Config wires the orchestrator's collaborators and tuning knobs.
type Config struct {
	Repo        Repository
	Fetcher     Fetcher
	Extractor   AudioExtractor
	Transcriber Transcriber
	Publisher   ArtifactPublisher

	// SourceClassifier maps a media URL to a source kind when the
	// caller does not say. Defaults to SourceURL for everything.
	SourceClassifier func(url string) domain.SourceKind

	// WorkDir is the root under which per-task workspaces are created.
	WorkDir string

	// MaxConcurrent bounds the number of pipelines running at once.
	MaxConcurrent int

	// QueueDepth bounds the admission queue. Submit fails with
	// ErrQueueSaturated once it is full; submission never blocks.
	QueueDepth int

	// Defaults applied to requests that omit them.
	DefaultModel       string
	DefaultDevice      string
	DefaultComputeType string

	// Stage-local retry policy for transient failures.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	Logger *slog.Logger
}

// Orchestrator runs transcription pipelines. One instance owns the
// admission queue, the worker pool, the cancellation registry and the
// progress bus; the task repository is the single source of truth for
// state.
type Orchestrator struct {
	cfg Config

	repo        Repository
	fetcher     Fetcher
	extractor   AudioExtractor
	transcriber Transcriber
	publisher   ArtifactPublisher

	bus   *Bus
	queue chan string

	// Cancellation flags, checked by executors at stage boundaries.
	mu      sync.Mutex
	cancels map[string]bool

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New creates an Orchestrator. It does not start workers; call Start.
func New(cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBase
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultRetryMax
	}
	if cfg.SourceClassifier == nil {
		cfg.SourceClassifier = func(string) domain.SourceKind { return domain.SourceURL }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		cfg:         cfg,
		repo:        cfg.Repo,
		fetcher:     cfg.Fetcher,
		extractor:   cfg.Extractor,
		transcriber: cfg.Transcriber,
		publisher:   cfg.Publisher,
		bus:         NewBus(),
		queue:       make(chan string, cfg.QueueDepth),
		cancels:     make(map[string]bool),
		logger:      cfg.Logger,
	}
}

// Bus exposes the progress bus for direct subscription.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// Start recovers interrupted work and launches the worker pool.
//
// Recovery policy: tasks left in running by a previous process are
// marked failed with kind "interrupted" (a crashed executor cannot be
// resumed mid-stage); tasks still pending are re-enqueued in creation
// order.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	interrupted, err := o.repo.FailInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("recover interrupted tasks: %w", err)
	}
	if interrupted > 0 {
		o.logger.Warn("marked interrupted tasks as failed", "count", interrupted)
	}

	pending, err := o.repo.ListPending(ctx, o.cfg.QueueDepth)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}
	for _, t := range pending {
		select {
		case o.queue <- t.ID:
		default:
			o.logger.Warn("admission queue full during recovery", "task_id", t.ID)
		}
	}
	if len(pending) > 0 {
		o.logger.Info("re-enqueued pending tasks", "count", len(pending))
	}
	metrics.QueueDepth.Set(float64(len(o.queue)))

	for i := 0; i < o.cfg.MaxConcurrent; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.workLoop(ctx)
		}()
	}

	o.logger.Info("orchestrator started",
		"max_concurrent", o.cfg.MaxConcurrent,
		"queue_depth", o.cfg.QueueDepth,
		"work_dir", o.cfg.WorkDir,
	)
	return nil
}

// Stop cancels the worker pool and waits for in-flight pipelines to
// unwind. Stages already running finish their current attempt.
func (o *Orchestrator) Stop() {
	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// workLoop pulls task ids in FIFO order and runs one pipeline at a
// time. Each running pipeline occupies one unit of pool capacity; the
// admission path never blocks on it.
func (o *Orchestrator) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-o.queue:
			metrics.QueueDepth.Set(float64(len(o.queue)))
			o.runTask(ctx, id)
		}
	}
}

// CreateTask validates the request, persists a pending record and
// enqueues it. It returns quickly; all pipeline work happens in the
// background.
func (o *Orchestrator) CreateTask(ctx context.Context, input domain.TaskInput) (*domain.Task, error) {
	if strings.TrimSpace(input.SourceURL) == "" {
		return nil, domain.ErrMissingSourceURL
	}
	if input.OutputFormat == "" {
		input.OutputFormat = domain.FormatText
	}
	if !input.OutputFormat.Valid() {
		return nil, domain.ErrBadOutputFormat
	}
	if input.SourceKind == "" {
		input.SourceKind = o.cfg.SourceClassifier(input.SourceURL)
	}
	if input.Model == "" {
		input.Model = o.cfg.DefaultModel
	}
	if input.Device == "" {
		input.Device = o.cfg.DefaultDevice
	}
	if input.ComputeType == "" {
		input.ComputeType = o.cfg.DefaultComputeType
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:        uuid.NewString(),
		Input:     input,
		Status:    domain.TaskPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.repo.InsertTask(ctx, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	select {
	case o.queue <- task.ID:
	default:
		// Admission queue full. The record already exists, so close it
		// out rather than leaving a pending task nobody will run.
		metrics.TasksRejected.Inc()
		failed, ferr := o.repo.UpdateTaskState(ctx, task.ID,
			domain.FailTransition(domain.FailureFatal, "admission queue saturated"))
		if ferr == nil {
			o.bus.Publish(EventFromTask(failed, ""))
		}
		return nil, domain.ErrQueueSaturated
	}
	metrics.TasksCreated.Inc()
	metrics.QueueDepth.Set(float64(len(o.queue)))

	o.logger.Info("task created",
		"task_id", task.ID,
		"source_kind", input.SourceKind,
		"model", input.Model,
		"output_format", input.OutputFormat,
	)
	return &task, nil
}

// GetTask returns the current persisted snapshot.
func (o *Orchestrator) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return o.repo.GetTask(ctx, id)
}

// ListTasks returns recent tasks, optionally filtered by status.
func (o *Orchestrator) ListTasks(ctx context.Context, status domain.TaskStatus, limit int) ([]domain.Task, error) {
	return o.repo.ListTasks(ctx, status, limit)
}

// CancelTask marks a task for cooperative cancellation. The running
// executor observes the flag at the next stage boundary; a stage in
// flight runs to completion first.
func (o *Orchestrator) CancelTask(ctx context.Context, id string) error {
	task, err := o.repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		return domain.ErrTaskTerminal
	}

	o.mu.Lock()
	o.cancels[id] = true
	o.mu.Unlock()

	o.logger.Info("task marked for cancellation", "task_id", id)
	return nil
}

// Artifact returns the most recent artifact descriptor together with a
// resolved download URL. ErrArtifactNotReady until the task completes.
func (o *Orchestrator) Artifact(ctx context.Context, id string) (*domain.Artifact, string, error) {
	task, err := o.repo.GetTask(ctx, id)
	if err != nil {
		return nil, "", err
	}
	art := task.LatestArtifact()
	if task.Status != domain.TaskCompleted || art == nil {
		return nil, "", domain.ErrArtifactNotReady
	}

	url, err := o.publisher.ResolveURL(ctx, art.Location)
	if err != nil {
		return nil, "", fmt.Errorf("resolve artifact url: %w", err)
	}
	return art, url, nil
}

// Stream returns a channel of progress events for one task. The first
// event is always the current persisted snapshot, so a subscriber that
// attaches after the task finished receives exactly one terminal event.
// The channel closes when the task reaches a terminal state or ctx ends.
func (o *Orchestrator) Stream(ctx context.Context, id string) (<-chan Event, error) {
	// Subscribe before the snapshot read: anything committed after the
	// read arrives via the bus, so no transition can fall in a gap.
	sub := o.bus.Subscribe(id)

	task, err := o.repo.GetTask(ctx, id)
	if err != nil {
		sub.Cancel()
		return nil, err
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Cancel()

		snapshot := EventFromTask(task, "")
		select {
		case out <- snapshot:
		case <-ctx.Done():
			return
		}
		if snapshot.Terminal() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Terminal() {
					return
				}
			}
		}
	}()
	return out, nil
}

// cancelled reports and does not clear the task's cancellation flag.
func (o *Orchestrator) cancelled(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancels[id]
}

// clearCancel drops the flag once the task is terminal.
func (o *Orchestrator) clearCancel(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, id)
}
