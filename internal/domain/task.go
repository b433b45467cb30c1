// Package domain holds the core transcription task types.
// A Task is one transcription request and its lifecycle record:
// submit → fetch → extract → transcribe → render → publish.
package domain

import "time"

// TaskStatus tracks the task lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Stage names one pipeline step. Stages execute strictly in this order.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
	StageRender     Stage = "render"
	StagePublish    Stage = "publish"
)

// Stages is the fixed pipeline order.
var Stages = []Stage{StageFetch, StageExtract, StageTranscribe, StageRender, StagePublish}

// StageProgress maps each stage to the progress value persisted when the
// stage starts. Completion is always 100, so polling callers only ever
// see the value move forward.
var StageProgress = map[Stage]float64{
	StageFetch:      5,
	StageExtract:    25,
	StageTranscribe: 50,
	StageRender:     80,
	StagePublish:    90,
}

// SourceKind identifies how the media URL should be fetched.
type SourceKind string

const (
	SourceURL     SourceKind = "url"
	SourceYouTube SourceKind = "youtube"
)

// OutputFormat selects the rendered transcript format.
type OutputFormat string

const (
	FormatText     OutputFormat = "text"
	FormatMarkdown OutputFormat = "markdown"
)

// Valid reports whether the format is one we can render.
func (f OutputFormat) Valid() bool {
	return f == FormatText || f == FormatMarkdown
}

// FileName returns the transcript filename for the format.
func (f OutputFormat) FileName() string {
	if f == FormatMarkdown {
		return "transcript.md"
	}
	return "transcript.txt"
}

// TaskInput is the immutable request half of a task record.
type TaskInput struct {
	SourceURL    string       `json:"source_url"`
	SourceKind   SourceKind   `json:"source_kind"`
	Model        string       `json:"model"`
	Language     string       `json:"language,omitempty"`
	OutputFormat OutputFormat `json:"output_format"`
	Device       string       `json:"device,omitempty"`
	ComputeType  string       `json:"compute_type,omitempty"`
}

// TaskError is the structured failure payload surfaced to callers.
// No stack-level detail crosses the API boundary.
type TaskError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Artifact describes one published transcript output.
type Artifact struct {
	FileName         string    `json:"file_name"`
	Location         string    `json:"location"`
	SizeBytes        int64     `json:"size_bytes"`
	Format           string    `json:"format"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Task is one transcription request and its durable state.
type Task struct {
	ID        string     `json:"id"`
	Input     TaskInput  `json:"input"`
	Status    TaskStatus `json:"status"`
	Stage     Stage      `json:"stage,omitempty"`
	Progress  float64    `json:"progress"`
	Error     *TaskError `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// LatestArtifact returns the most recently attached artifact, or nil.
func (t *Task) LatestArtifact() *Artifact {
	if len(t.Artifacts) == 0 {
		return nil
	}
	return &t.Artifacts[len(t.Artifacts)-1]
}

// ValidTransition enforces the task state machine:
// pending → running → {completed | failed}. Terminal states are frozen.
func ValidTransition(from, to TaskStatus) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskFailed
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}
