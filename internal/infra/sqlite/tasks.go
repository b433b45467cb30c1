package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scribe-audio/scribed/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

const taskColumns = `id, source_url, source_kind, model, language, output_format,
	device, compute_type, status, stage, progress, error_kind, error_message,
	created_at, updated_at`

// InsertTask creates a new task record.
func (d *DB) InsertTask(ctx context.Context, task domain.Task) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO tasks (id, source_url, source_kind, model, language, output_format,
			device, compute_type, status, stage, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Input.SourceURL, string(task.Input.SourceKind),
		task.Input.Model, task.Input.Language, string(task.Input.OutputFormat),
		task.Input.Device, task.Input.ComputeType,
		string(task.Status), string(task.Stage), task.Progress,
		task.CreatedAt.Unix(), task.UpdatedAt.Unix(),
	)
	return err
}

// GetTask returns a task with its artifacts.
func (d *DB) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := d.loadArtifacts(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns recent tasks, newest first. An empty status matches
// all tasks. Artifacts are not loaded for list views.
func (d *DB) ListTasks(ctx context.Context, status domain.TaskStatus, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = d.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC LIMIT ?`,
			limit)
	} else {
		rows, err = d.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE status = ?
			 ORDER BY created_at DESC, id DESC LIMIT ?`,
			string(status), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListPending returns pending tasks oldest first, the order in which
// they should be (re-)enqueued.
func (d *DB) ListPending(ctx context.Context, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ?
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		string(domain.TaskPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// UpdateTaskState applies one transition atomically and returns the
// authoritative post-update record. Terminal tasks reject every
// further transition; status moves must follow the state machine.
func (d *DB) UpdateTaskState(ctx context.Context, id string, tr domain.Transition) (*domain.Task, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	from := domain.TaskStatus(current)
	if from == domain.TaskCompleted || from == domain.TaskFailed {
		return nil, domain.ErrTaskTerminal
	}
	if tr.Status != nil && !domain.ValidTransition(from, *tr.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, *tr.Status)
	}

	set := "updated_at = ?"
	args := []any{time.Now().UTC().Unix()}
	if tr.Status != nil {
		set += ", status = ?"
		args = append(args, string(*tr.Status))
	}
	if tr.Stage != nil {
		set += ", stage = ?"
		args = append(args, string(*tr.Stage))
	}
	if tr.Progress != nil {
		set += ", progress = ?"
		args = append(args, *tr.Progress)
	}
	if tr.Error != nil {
		set += ", error_kind = ?, error_message = ?"
		args = append(args, string(tr.Error.Kind), tr.Error.Message)
	}
	args = append(args, id)

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET `+set+` WHERE id = ?`, args...); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if task.Status == domain.TaskCompleted {
		if err := d.loadArtifacts(ctx, task); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// InsertArtifact attaches a published artifact to a task.
func (d *DB) InsertArtifact(ctx context.Context, taskID string, a domain.Artifact) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO artifacts (task_id, file_name, location, size_bytes, format, detected_language, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taskID, a.FileName, a.Location, a.SizeBytes, a.Format, a.DetectedLanguage, created.Unix(),
	)
	return err
}

// FailInterrupted marks every running task as failed with kind
// "interrupted". Called once at startup: a task left running by a dead
// process has no executor and can never finish.
func (d *DB) FailInterrupted(ctx context.Context) (int, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
		 WHERE status = ?`,
		string(domain.TaskFailed), string(domain.FailureInterrupted),
		"interrupted by process shutdown", time.Now().UTC().Unix(),
		string(domain.TaskRunning),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ─── Scanning ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                    domain.Task
		kind, format, status string
		stage                string
		errKind, errMsg      sql.NullString
		created, updated     int64
	)
	err := row.Scan(&t.ID, &t.Input.SourceURL, &kind, &t.Input.Model,
		&t.Input.Language, &format, &t.Input.Device, &t.Input.ComputeType,
		&status, &stage, &t.Progress, &errKind, &errMsg, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	t.Input.SourceKind = domain.SourceKind(kind)
	t.Input.OutputFormat = domain.OutputFormat(format)
	t.Status = domain.TaskStatus(status)
	t.Stage = domain.Stage(stage)
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	if errKind.Valid && errKind.String != "" {
		t.Error = &domain.TaskError{
			Kind:    domain.FailureKind(errKind.String),
			Message: errMsg.String,
		}
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (d *DB) loadArtifacts(ctx context.Context, t *domain.Task) error {
	rows, err := d.db.QueryContext(ctx,
		`SELECT file_name, location, size_bytes, format, detected_language, created_at
		 FROM artifacts WHERE task_id = ? ORDER BY id ASC`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a       domain.Artifact
			created int64
		)
		if err := rows.Scan(&a.FileName, &a.Location, &a.SizeBytes,
			&a.Format, &a.DetectedLanguage, &created); err != nil {
			return err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		t.Artifacts = append(t.Artifacts, a)
	}
	return rows.Err()
}
