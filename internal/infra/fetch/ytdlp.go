package fetch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/proc"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

// YtDlpOptions configures the yt-dlp subprocess.
type YtDlpOptions struct {
	// Binary overrides the yt-dlp executable name.
	Binary string

	// Proxy is a forward proxy URL passed through to yt-dlp.
	Proxy string

	// CookiesFile is a Netscape-format cookies file for age-gated or
	// membership content.
	CookiesFile string

	// PlayerClient selects the YouTube player client. "android" needs a
	// PO token; without one it silently falls back to "default".
	PlayerClient string
	POToken      string
}

// YtDlpFetcher downloads platform-hosted videos best-audio-first via a
// yt-dlp subprocess. Transcoding to the transcriber's sample format is
// the extract stage's job, so the download is kept as-is.
type YtDlpFetcher struct {
	runner proc.Runner
	opts   YtDlpOptions
}

// NewYtDlpFetcher builds the platform fetcher.
func NewYtDlpFetcher(runner proc.Runner, opts YtDlpOptions) *YtDlpFetcher {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	return &YtDlpFetcher{runner: runner, opts: opts}
}

// Fetch downloads the best audio stream for req.URL into req.WorkDir.
func (f *YtDlpFetcher) Fetch(ctx context.Context, req orchestrator.FetchRequest) (string, error) {
	args := []string{
		"--format", "bestaudio/best",
		"--no-playlist",
		"--no-progress",
		"--retries", "3",
		"--output", filepath.Join(req.WorkDir, "source.%(ext)s"),
	}
	if f.opts.Proxy != "" {
		args = append(args, "--proxy", f.opts.Proxy)
	}
	if f.opts.CookiesFile != "" {
		args = append(args, "--cookies", f.opts.CookiesFile)
	}
	if ea := f.extractorArgs(); ea != "" {
		args = append(args, "--extractor-args", ea)
	}
	args = append(args, req.URL)

	res, err := f.runner.Run(ctx, nil, f.opts.Binary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", &domain.Failure{Kind: domain.FailureCancelled, Err: ctx.Err()}
		}
		return "", classifyYtDlpErr(err, res.Stderr)
	}

	matches, err := filepath.Glob(filepath.Join(req.WorkDir, "source.*"))
	if err != nil || len(matches) == 0 {
		return "", domain.Fatalf("yt-dlp produced no output file")
	}
	return matches[0], nil
}

// extractorArgs builds the youtube extractor argument string. An
// "android" client without a PO token falls back to "default", matching
// yt-dlp's GVS token requirement.
func (f *YtDlpFetcher) extractorArgs() string {
	client := f.opts.PlayerClient
	if client == "" {
		client = "default"
	}
	if strings.EqualFold(client, "android") && f.opts.POToken == "" {
		client = "default"
	}

	parts := []string{"player_client=" + client}
	if f.opts.POToken != "" {
		parts = append(parts, "po_token="+f.opts.POToken)
	}
	return "youtube:" + strings.Join(parts, ";")
}

// classifyYtDlpErr maps yt-dlp failures: content problems are fatal,
// network problems are worth retrying.
func classifyYtDlpErr(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	for _, hint := range []string{
		"video unavailable", "private video", "unsupported url",
		"sign in to confirm", "age-restricted", "members-only",
		"requested format is not available",
	} {
		if strings.Contains(lower, hint) {
			return domain.Fatalf("yt-dlp: %s", firstLine(stderr))
		}
	}
	for _, hint := range []string{
		"timed out", "connection reset", "connection refused",
		"temporary failure", "http error 5", "http error 429",
	} {
		if strings.Contains(lower, hint) {
			return domain.Transient(fmt.Errorf("yt-dlp: %s", firstLine(stderr)))
		}
	}
	if stderr != "" {
		return domain.Fatalf("yt-dlp: %s", firstLine(stderr))
	}
	return domain.Fatal(err)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
