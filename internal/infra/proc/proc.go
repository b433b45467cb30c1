// Package proc runs external tools (ffmpeg, yt-dlp, whisper) and captures
// their output. The Runner interface exists so adapter tests can stub
// process execution without spawning anything.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Result is one command invocation outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, env []string, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
// env entries are appended to the parent environment.
func (ExecRunner) Run(ctx context.Context, env []string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

// LookPath reports whether a binary is resolvable, for preflight checks.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
