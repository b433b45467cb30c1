package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies a stage failure and controls retry behavior.
type FailureKind string

const (
	// FailureTransient covers network blips, rate limits and lock
	// contention. Eligible for stage-local retry with backoff.
	FailureTransient FailureKind = "transient"

	// FailureFatal covers invalid input, unsupported sources, decode
	// failures, inference crashes and storage rejection. Never retried.
	FailureFatal FailureKind = "fatal"

	// FailureCancelled means a cooperative stop was requested.
	FailureCancelled FailureKind = "cancelled"

	// FailureInterrupted means the process died while the task was
	// running. Applied during startup recovery, never by a live executor.
	FailureInterrupted FailureKind = "interrupted"
)

// Failure is a classified stage error. Stage adapters classify their own
// failures; the pipeline executor only inspects Kind.
type Failure struct {
	Kind FailureKind
	Err  error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (f *Failure) Unwrap() error { return f.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) *Failure { return &Failure{Kind: FailureTransient, Err: err} }

// Fatal wraps err as a non-retryable failure.
func Fatal(err error) *Failure { return &Failure{Kind: FailureFatal, Err: err} }

// Fatalf builds a non-retryable failure from a format string.
func Fatalf(format string, args ...any) *Failure {
	return &Failure{Kind: FailureFatal, Err: fmt.Errorf(format, args...)}
}

// Classify maps any error to a Failure. A *Failure passes through
// unchanged; everything else is treated as fatal.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailureFatal, Err: err}
}
