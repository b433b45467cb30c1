package domain

// Transition is one atomic state change applied to a task record.
// Nil fields are left untouched; the repository applies all non-nil
// fields together with updated_at in a single write and returns the
// authoritative post-update record.
type Transition struct {
	Status   *TaskStatus
	Stage    *Stage
	Progress *float64
	Error    *TaskError
}

// StatusTransition builds a transition that only moves the status.
func StatusTransition(s TaskStatus) Transition {
	return Transition{Status: &s}
}

// StageTransition builds a transition marking a stage as started,
// carrying the stage's fixed progress checkpoint.
func StageTransition(stage Stage) Transition {
	p := StageProgress[stage]
	return Transition{Stage: &stage, Progress: &p}
}

// StartTransition builds the pending → running move, entering the
// first stage with its progress checkpoint.
func StartTransition(stage Stage) Transition {
	s := TaskRunning
	p := StageProgress[stage]
	return Transition{Status: &s, Stage: &stage, Progress: &p}
}

// FailTransition builds the terminal failed transition.
func FailTransition(kind FailureKind, message string) Transition {
	s := TaskFailed
	return Transition{Status: &s, Error: &TaskError{Kind: kind, Message: message}}
}

// CompleteTransition builds the terminal completed transition.
func CompleteTransition() Transition {
	s := TaskCompleted
	p := 100.0
	return Transition{Status: &s, Progress: &p}
}
