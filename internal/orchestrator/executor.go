package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/metrics"
)

// runTask executes the full pipeline for one task: fetch, extract,
// transcribe, render, publish. Every state transition is committed to
// the repository before the corresponding event is published, so a
// poll issued after receiving an event always observes at least that
// state.
func (o *Orchestrator) runTask(ctx context.Context, id string) {
	task, err := o.repo.GetTask(ctx, id)
	if err != nil {
		o.logger.Error("load task for execution", "task_id", id, "error", err)
		return
	}
	if task.Status != domain.TaskPending {
		// Already handled, e.g. failed by the saturation path.
		return
	}

	metrics.TasksActive.Inc()
	defer metrics.TasksActive.Dec()
	defer o.clearCancel(id)

	start := time.Now()
	log := o.logger.With("task_id", id)
	log.Info("pipeline started", "source_url", task.Input.SourceURL)

	ws, err := NewWorkspace(o.cfg.WorkDir, id)
	if err != nil {
		o.fail(ctx, id, domain.FailureFatal, fmt.Sprintf("create workspace: %v", err))
		return
	}
	defer func() {
		if rerr := ws.Remove(); rerr != nil {
			log.Warn("workspace cleanup", "error", rerr)
		}
	}()

	if err := o.execute(ctx, task, ws); err != nil {
		var f *domain.Failure
		if !errors.As(err, &f) {
			f = &domain.Failure{Kind: domain.FailureFatal, Err: err}
		}
		o.fail(ctx, id, f.Kind, f.Error())
		metrics.TasksFailed.WithLabelValues(string(f.Kind)).Inc()
		log.Error("pipeline failed",
			"kind", f.Kind,
			"error", f.Error(),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return
	}

	metrics.TasksCompleted.Inc()
	log.Info("pipeline completed", "elapsed", time.Since(start).Round(time.Millisecond))
}

// execute runs the stages in order, committing a checkpoint before
// each one. Cancellation is observed only between stages; a returned
// error carries its failure classification.
func (o *Orchestrator) execute(ctx context.Context, task *domain.Task, ws *Workspace) error {
	id := task.ID

	if err := o.advance(ctx, id, domain.StageFetch); err != nil {
		return err
	}
	var mediaPath string
	err := o.withRetry(ctx, id, domain.StageFetch, func() error {
		var ferr error
		mediaPath, ferr = o.fetcher.Fetch(ctx, FetchRequest{
			URL:     task.Input.SourceURL,
			Kind:    task.Input.SourceKind,
			WorkDir: ws.Dir,
		})
		return ferr
	})
	if err != nil {
		return err
	}

	if err := o.checkpoint(ctx, id, domain.StageExtract); err != nil {
		return err
	}
	var audioPath string
	err = o.withRetry(ctx, id, domain.StageExtract, func() error {
		var xerr error
		audioPath, xerr = o.extractor.Extract(ctx, mediaPath, ws.Dir)
		return xerr
	})
	if err != nil {
		return err
	}

	if err := o.checkpoint(ctx, id, domain.StageTranscribe); err != nil {
		return err
	}
	var tr *Transcription
	err = o.withRetry(ctx, id, domain.StageTranscribe, func() error {
		var terr error
		tr, terr = o.transcriber.Transcribe(ctx, TranscribeRequest{
			AudioPath:   audioPath,
			Model:       task.Input.Model,
			Language:    task.Input.Language,
			Device:      task.Input.Device,
			ComputeType: task.Input.ComputeType,
			WorkDir:     ws.Dir,
		})
		return terr
	})
	if err != nil {
		return err
	}

	if err := o.checkpoint(ctx, id, domain.StageRender); err != nil {
		return err
	}
	rendered, err := renderTranscript(ws, tr, task.Input.OutputFormat)
	if err != nil {
		return domain.Fatalf("render transcript: %v", err)
	}

	if err := o.checkpoint(ctx, id, domain.StagePublish); err != nil {
		return err
	}
	var artifact domain.Artifact
	err = o.withRetry(ctx, id, domain.StagePublish, func() error {
		var perr error
		artifact, perr = o.publisher.Publish(ctx, id, rendered, task.Input.OutputFormat)
		return perr
	})
	if err != nil {
		return err
	}
	artifact.DetectedLanguage = tr.Language

	if err := o.repo.InsertArtifact(ctx, id, artifact); err != nil {
		return domain.Fatalf("record artifact: %v", err)
	}

	updated, err := o.repo.UpdateTaskState(ctx, id, domain.CompleteTransition())
	if err != nil {
		return domain.Fatalf("finalize task: %v", err)
	}
	o.bus.Publish(EventFromTask(updated, "transcription complete"))
	return nil
}

// advance moves a pending task to running at its first stage.
func (o *Orchestrator) advance(ctx context.Context, id string, stage domain.Stage) error {
	if err := o.checkCancel(id); err != nil {
		return err
	}
	updated, err := o.repo.UpdateTaskState(ctx, id, domain.StartTransition(stage))
	if err != nil {
		return domain.Fatalf("start task: %v", err)
	}
	o.bus.Publish(EventFromTask(updated, stageMessage(stage)))
	return nil
}

// checkpoint commits the stage boundary: cancellation check first,
// then the progress write, then the event.
func (o *Orchestrator) checkpoint(ctx context.Context, id string, stage domain.Stage) error {
	if err := o.checkCancel(id); err != nil {
		return err
	}
	updated, err := o.repo.UpdateTaskState(ctx, id, domain.StageTransition(stage))
	if err != nil {
		return domain.Fatalf("checkpoint %s: %v", stage, err)
	}
	o.bus.Publish(EventFromTask(updated, stageMessage(stage)))
	return nil
}

func (o *Orchestrator) checkCancel(id string) error {
	return checkCancelErr(o.cancelled(id))
}

func checkCancelErr(flag bool) error {
	if flag {
		return &domain.Failure{Kind: domain.FailureCancelled, Err: errors.New("cancelled by request")}
	}
	return nil
}

// withRetry runs fn, retrying transient failures with exponential
// backoff up to MaxRetries. Fatal failures and cancellation return
// immediately; exhausted retries escalate to fatal.
func (o *Orchestrator) withRetry(ctx context.Context, id string, stage domain.Stage, fn func() error) error {
	timer := metrics.NewStageTimer(string(stage))
	defer timer.Observe()

	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.StageRetries.WithLabelValues(string(stage)).Inc()
			delay := o.backoff(attempt)
			o.logger.Warn("retrying stage",
				"task_id", id,
				"stage", stage,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &domain.Failure{Kind: domain.FailureCancelled, Err: ctx.Err()}
			}
			if err := o.checkCancel(id); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return &domain.Failure{Kind: domain.FailureCancelled, Err: ctx.Err()}
		}

		f := domain.Classify(err)
		if f.Kind != domain.FailureTransient {
			return f
		}
		lastErr = err
	}

	return &domain.Failure{
		Kind: domain.FailureFatal,
		Err:  fmt.Errorf("%s failed after %d retries: %w", stage, o.cfg.MaxRetries, lastErr),
	}
}

// backoff returns BaseDelay * 2^(attempt-1) capped at RetryMaxDelay.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.cfg.RetryMaxDelay {
			return o.cfg.RetryMaxDelay
		}
	}
	if d > o.cfg.RetryMaxDelay {
		d = o.cfg.RetryMaxDelay
	}
	return d
}

// fail writes the single terminal failure record and announces it.
// If the task already reached a terminal state the write is rejected
// by the repository and nothing is published.
func (o *Orchestrator) fail(ctx context.Context, id string, kind domain.FailureKind, msg string) {
	updated, err := o.repo.UpdateTaskState(ctx, id, domain.FailTransition(kind, msg))
	if err != nil {
		if !errors.Is(err, domain.ErrTaskTerminal) {
			o.logger.Error("persist failure state", "task_id", id, "error", err)
		}
		return
	}
	o.bus.Publish(EventFromTask(updated, ""))
}

// renderTranscript writes the transcript into the workspace in the
// requested format and returns the file path.
func renderTranscript(ws *Workspace, tr *Transcription, format domain.OutputFormat) (string, error) {
	text := strings.TrimSpace(tr.Text)
	var body string
	switch format {
	case domain.FormatMarkdown:
		var b strings.Builder
		b.WriteString("## Transcript\n\n")
		if tr.Language != "" {
			fmt.Fprintf(&b, "_Detected language: %s_\n\n", tr.Language)
		}
		b.WriteString(text)
		b.WriteString("\n")
		body = b.String()
	default:
		body = text + "\n"
	}

	path := ws.Path(format.FileName())
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func stageMessage(stage domain.Stage) string {
	switch stage {
	case domain.StageFetch:
		return "fetching source media"
	case domain.StageExtract:
		return "extracting audio track"
	case domain.StageTranscribe:
		return "transcribing audio"
	case domain.StageRender:
		return "rendering transcript"
	case domain.StagePublish:
		return "publishing artifact"
	default:
		return ""
	}
}
