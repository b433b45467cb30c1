package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/proc"
)

type stubRunner struct {
	gotName string
	gotArgs []string
	result  proc.Result
	err     error
}

func (s *stubRunner) Run(ctx context.Context, env []string, name string, args ...string) (proc.Result, error) {
	s.gotName = name
	s.gotArgs = args
	return s.result, s.err
}

func TestExtractBuildsFFmpegArgs(t *testing.T) {
	runner := &stubRunner{}
	e := NewExtractor(runner, "")

	dir := t.TempDir()
	out, err := e.Extract(context.Background(), "/media/talk.mp4", dir)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if out != filepath.Join(dir, "audio.wav") {
		t.Errorf("output = %q, want audio.wav under work dir", out)
	}
	if runner.gotName != "ffmpeg" {
		t.Errorf("binary = %q, want ffmpeg", runner.gotName)
	}

	joined := strings.Join(runner.gotArgs, " ")
	for _, want := range []string{
		"-i /media/talk.mp4",
		"-vn",
		"-ac 1",
		"-ar 16000",
		"-c:a pcm_s16le",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("ffmpeg args missing %q in %q", want, joined)
		}
	}
}

func TestExtractFailureIsFatal(t *testing.T) {
	runner := &stubRunner{
		result: proc.Result{Stderr: "header\nInvalid data found when processing input\n", ExitCode: 1},
		err:    errors.New("exit status 1"),
	}
	e := NewExtractor(runner, "ffmpeg")

	_, err := e.Extract(context.Background(), "/media/broken.mp4", t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	f := domain.Classify(err)
	if f.Kind != domain.FailureFatal {
		t.Errorf("decode failure classified as %s, want fatal", f.Kind)
	}
	if !strings.Contains(f.Error(), "Invalid data found") {
		t.Errorf("error should carry the last ffmpeg stderr line, got %q", f.Error())
	}
}
