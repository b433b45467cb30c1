// Package audio converts fetched media into the transcriber's input
// format: mono 16 kHz 16-bit PCM WAV, produced by an ffmpeg subprocess.
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/proc"
)

// Extractor runs ffmpeg to pull the audio track out of a media file.
type Extractor struct {
	runner proc.Runner
	binary string
}

// NewExtractor builds an Extractor. binary defaults to "ffmpeg".
func NewExtractor(runner proc.Runner, binary string) *Extractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Extractor{runner: runner, binary: binary}
}

// Extract transcodes mediaPath into workDir/audio.wav. Decode failures
// are fatal: retrying the same broken file cannot help.
func (e *Extractor) Extract(ctx context.Context, mediaPath, workDir string) (string, error) {
	out := filepath.Join(workDir, "audio.wav")

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", mediaPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		out,
	}

	res, err := e.runner.Run(ctx, nil, e.binary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", &domain.Failure{Kind: domain.FailureCancelled, Err: ctx.Err()}
		}
		return "", domain.Fatalf("ffmpeg: %s", ffmpegReason(res.Stderr, err))
	}
	return out, nil
}

// ffmpegReason pulls the last non-empty stderr line, which is where
// ffmpeg reports what actually went wrong.
func ffmpegReason(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return err.Error()
}
