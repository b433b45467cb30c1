package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scribe-audio/scribed/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTask(t *testing.T, db *DB, id string, status domain.TaskStatus, created time.Time) {
	t.Helper()
	err := db.InsertTask(context.Background(), domain.Task{
		ID: id,
		Input: domain.TaskInput{
			SourceURL:    "https://example.test/" + id + ".mp4",
			SourceKind:   domain.SourceURL,
			Model:        "base",
			OutputFormat: domain.FormatText,
		},
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	})
	if err != nil {
		t.Fatalf("InsertTask(%s) error: %v", id, err)
	}
}

func TestInsertAndGetTask(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	seedTask(t, db, "t1", domain.TaskPending, now)

	task, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if task.Input.SourceURL != "https://example.test/t1.mp4" {
		t.Errorf("SourceURL = %q", task.Input.SourceURL)
	}
	if task.Status != domain.TaskPending || task.Progress != 0 {
		t.Errorf("fresh task = %s/%.0f, want pending/0", task.Status, task.Progress)
	}
	if !task.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", task.CreatedAt, now)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetTask(context.Background(), "missing")
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("GetTask(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestUpdateTaskStateTransitions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "t1", domain.TaskPending, time.Now().UTC())

	task, err := db.UpdateTaskState(ctx, "t1", domain.StartTransition(domain.StageFetch))
	if err != nil {
		t.Fatalf("start transition error: %v", err)
	}
	if task.Status != domain.TaskRunning || task.Stage != domain.StageFetch || task.Progress != 5 {
		t.Errorf("after start: %s/%s/%.0f, want running/fetch/5", task.Status, task.Stage, task.Progress)
	}

	task, err = db.UpdateTaskState(ctx, "t1", domain.StageTransition(domain.StageTranscribe))
	if err != nil {
		t.Fatalf("stage transition error: %v", err)
	}
	if task.Progress != 50 {
		t.Errorf("transcribe checkpoint progress = %.0f, want 50", task.Progress)
	}

	task, err = db.UpdateTaskState(ctx, "t1", domain.CompleteTransition())
	if err != nil {
		t.Fatalf("complete transition error: %v", err)
	}
	if task.Status != domain.TaskCompleted || task.Progress != 100 {
		t.Errorf("after complete: %s/%.0f, want completed/100", task.Status, task.Progress)
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "t1", domain.TaskPending, time.Now().UTC())

	if _, err := db.UpdateTaskState(ctx, "t1", domain.StartTransition(domain.StageFetch)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := db.UpdateTaskState(ctx, "t1", domain.FailTransition(domain.FailureFatal, "boom")); err != nil {
		t.Fatalf("fail: %v", err)
	}

	// Every further transition is rejected.
	for _, tr := range []domain.Transition{
		domain.CompleteTransition(),
		domain.StageTransition(domain.StagePublish),
		domain.FailTransition(domain.FailureFatal, "again"),
	} {
		if _, err := db.UpdateTaskState(ctx, "t1", tr); !errors.Is(err, domain.ErrTaskTerminal) {
			t.Errorf("transition on terminal task error = %v, want ErrTaskTerminal", err)
		}
	}

	task, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Error == nil || task.Error.Message != "boom" {
		t.Errorf("terminal error = %+v, want the first failure", task.Error)
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "t1", domain.TaskPending, time.Now().UTC())

	// pending cannot jump straight to completed.
	_, err := db.UpdateTaskState(ctx, "t1", domain.CompleteTransition())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("pending->completed error = %v, want ErrInvalidTransition", err)
	}
}

func TestListTasksOrderAndFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	seedTask(t, db, "a", domain.TaskPending, base)
	seedTask(t, db, "b", domain.TaskPending, base.Add(time.Minute))
	seedTask(t, db, "c", domain.TaskPending, base.Add(2*time.Minute))
	if _, err := db.UpdateTaskState(ctx, "b", domain.StartTransition(domain.StageFetch)); err != nil {
		t.Fatalf("start b: %v", err)
	}

	all, err := db.ListTasks(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListTasks() error: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("ListTasks order = %v, want newest first", ids(all))
	}

	running, err := db.ListTasks(ctx, domain.TaskRunning, 10)
	if err != nil {
		t.Fatalf("ListTasks(running) error: %v", err)
	}
	if len(running) != 1 || running[0].ID != "b" {
		t.Errorf("ListTasks(running) = %v, want [b]", ids(running))
	}
}

func TestListPendingOldestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	seedTask(t, db, "newer", domain.TaskPending, base.Add(time.Minute))
	seedTask(t, db, "older", domain.TaskPending, base)

	pending, err := db.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "older" {
		t.Errorf("ListPending order = %v, want oldest first", ids(pending))
	}
}

func TestArtifactsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "t1", domain.TaskPending, time.Now().UTC())

	err := db.InsertArtifact(ctx, "t1", domain.Artifact{
		FileName:         "transcript.txt",
		Location:         "transcripts/t1/transcript.txt",
		SizeBytes:        42,
		Format:           "text",
		DetectedLanguage: "en",
	})
	if err != nil {
		t.Fatalf("InsertArtifact() error: %v", err)
	}

	task, err := db.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error: %v", err)
	}
	if len(task.Artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(task.Artifacts))
	}
	a := task.Artifacts[0]
	if a.Location != "transcripts/t1/transcript.txt" || a.SizeBytes != 42 || a.DetectedLanguage != "en" {
		t.Errorf("artifact round trip mismatch: %+v", a)
	}
}

func TestFailInterrupted(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTask(t, db, "running", domain.TaskRunning, now)
	seedTask(t, db, "pending", domain.TaskPending, now)
	seedTask(t, db, "done", domain.TaskPending, now)
	if _, err := db.UpdateTaskState(ctx, "done", domain.StartTransition(domain.StageFetch)); err != nil {
		t.Fatalf("start done: %v", err)
	}
	if _, err := db.UpdateTaskState(ctx, "done", domain.CompleteTransition()); err != nil {
		t.Fatalf("complete done: %v", err)
	}

	n, err := db.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted() error: %v", err)
	}
	if n != 1 {
		t.Errorf("FailInterrupted() = %d, want 1", n)
	}

	task, _ := db.GetTask(ctx, "running")
	if task.Status != domain.TaskFailed || task.Error == nil || task.Error.Kind != domain.FailureInterrupted {
		t.Errorf("interrupted task = %s/%+v, want failed/interrupted", task.Status, task.Error)
	}

	// Pending and completed tasks are untouched.
	if task, _ := db.GetTask(ctx, "pending"); task.Status != domain.TaskPending {
		t.Errorf("pending task status = %s, want pending", task.Status)
	}
	if task, _ := db.GetTask(ctx, "done"); task.Status != domain.TaskCompleted {
		t.Errorf("completed task status = %s, want completed", task.Status)
	}
}

func ids(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
