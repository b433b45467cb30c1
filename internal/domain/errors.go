package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Task errors
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskTerminal      = errors.New("task already reached a terminal state")
	ErrInvalidTransition = errors.New("invalid task state transition")

	// Admission errors
	ErrQueueSaturated = errors.New("task queue is full")

	// Artifact errors
	ErrArtifactNotReady = errors.New("task has no artifact yet")

	// Input errors
	ErrMissingSourceURL = errors.New("source url is required")
	ErrBadOutputFormat  = errors.New("output format must be \"text\" or \"markdown\"")

	// Adapter errors
	ErrUnsupportedSource = errors.New("unsupported media source")
	ErrModelNotFound     = errors.New("transcription model not found")
)
