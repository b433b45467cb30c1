package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/proc"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		url  string
		want domain.SourceKind
	}{
		{"https://www.youtube.com/watch?v=abc123", domain.SourceYouTube},
		{"https://youtube.com/watch?v=abc123", domain.SourceYouTube},
		{"https://youtu.be/abc123", domain.SourceYouTube},
		{"https://m.youtube.com/watch?v=abc123", domain.SourceYouTube},
		{"https://music.youtube.com/watch?v=abc123", domain.SourceYouTube},
		{"HTTPS://YOUTU.BE/abc123", domain.SourceYouTube},
		{"https://example.com/video.mp4", domain.SourceURL},
		{"https://notyoutube.com/watch", domain.SourceURL},
		{"https://example.com/youtube.com/fake", domain.SourceURL},
	}

	for _, tt := range tests {
		if got := DetectKind(tt.url); got != tt.want {
			t.Errorf("DetectKind(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestRouterSelectsByKind(t *testing.T) {
	direct := &recordingFetcher{path: "direct"}
	platform := &recordingFetcher{path: "platform"}
	r := &Router{Direct: direct, Platform: platform}

	ctx := context.Background()
	if p, _ := r.Fetch(ctx, orchestrator.FetchRequest{Kind: domain.SourceURL}); p != "direct" {
		t.Errorf("url request routed to %q", p)
	}
	if p, _ := r.Fetch(ctx, orchestrator.FetchRequest{Kind: domain.SourceYouTube}); p != "platform" {
		t.Errorf("youtube request routed to %q", p)
	}

	_, err := r.Fetch(ctx, orchestrator.FetchRequest{Kind: "vimeo"})
	if !errors.Is(err, domain.ErrUnsupportedSource) {
		t.Errorf("unknown kind error = %v, want ErrUnsupportedSource", err)
	}
}

type recordingFetcher struct{ path string }

func (f *recordingFetcher) Fetch(ctx context.Context, req orchestrator.FetchRequest) (string, error) {
	return f.path, nil
}

// ─── HTTP Fetcher ───────────────────────────────────────────────────────────

func TestHTTPFetcherDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		fmt.Fprint(w, "media-bytes")
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher("", 0)
	if err != nil {
		t.Fatalf("NewHTTPFetcher() error: %v", err)
	}

	dir := t.TempDir()
	path, err := f.Fetch(context.Background(), orchestrator.FetchRequest{
		URL:     srv.URL + "/talk.mp4",
		WorkDir: dir,
	})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if filepath.Base(path) != "source.mp4" {
		t.Errorf("downloaded file = %q, want source.mp4", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestHTTPFetcherClassifiesStatusCodes(t *testing.T) {
	for _, tt := range []struct {
		status int
		want   domain.FailureKind
	}{
		{http.StatusNotFound, domain.FailureFatal},
		{http.StatusForbidden, domain.FailureFatal},
		{http.StatusInternalServerError, domain.FailureTransient},
		{http.StatusBadGateway, domain.FailureTransient},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		f, _ := NewHTTPFetcher("", 0)
		_, err := f.Fetch(context.Background(), orchestrator.FetchRequest{
			URL:     srv.URL,
			WorkDir: t.TempDir(),
		})
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected an error", tt.status)
		}
		if f := domain.Classify(err); f.Kind != tt.want {
			t.Errorf("status %d classified as %s, want %s", tt.status, f.Kind, tt.want)
		}
	}
}

func TestHTTPFetcherConnectionRefusedIsTransient(t *testing.T) {
	f, _ := NewHTTPFetcher("", 0)

	// A closed port: dial fails immediately.
	_, err := f.Fetch(context.Background(), orchestrator.FetchRequest{
		URL:     "http://127.0.0.1:1/nothing.mp4",
		WorkDir: t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if f := domain.Classify(err); f.Kind != domain.FailureTransient {
		t.Errorf("connection refused classified as %s, want transient", f.Kind)
	}
}

func TestSourceFileName(t *testing.T) {
	tests := []struct {
		url, contentType, want string
	}{
		{"https://example.com/a.mp3", "", "source.mp3"},
		{"https://example.com/a.mp4?sig=x", "", "source.mp4"},
		{"https://example.com/stream", "audio/mpeg", "source.mp3"},
		{"https://example.com/stream", "video/webm", "source.webm"},
		{"https://example.com/stream", "application/octet-stream", "source.bin"},
	}
	for _, tt := range tests {
		if got := sourceFileName(tt.url, tt.contentType); got != tt.want {
			t.Errorf("sourceFileName(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}

// ─── yt-dlp Fetcher ─────────────────────────────────────────────────────────

type stubRunner struct {
	gotName string
	gotArgs []string
	result  proc.Result
	err     error

	// onRun lets a test create the expected output file.
	onRun func(args []string)
}

func (s *stubRunner) Run(ctx context.Context, env []string, name string, args ...string) (proc.Result, error) {
	s.gotName = name
	s.gotArgs = args
	if s.onRun != nil {
		s.onRun(args)
	}
	return s.result, s.err
}

func TestYtDlpFetcherBuildsArgs(t *testing.T) {
	dir := t.TempDir()
	runner := &stubRunner{
		onRun: func(args []string) {
			os.WriteFile(filepath.Join(dir, "source.webm"), []byte("audio"), 0o644)
		},
	}
	f := NewYtDlpFetcher(runner, YtDlpOptions{
		Proxy:        "http://proxy:8080",
		CookiesFile:  "/tmp/cookies.txt",
		PlayerClient: "web",
	})

	path, err := f.Fetch(context.Background(), orchestrator.FetchRequest{
		URL:     "https://youtu.be/abc",
		WorkDir: dir,
	})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if filepath.Base(path) != "source.webm" {
		t.Errorf("fetched file = %q", path)
	}

	joined := strings.Join(runner.gotArgs, " ")
	for _, want := range []string{
		"--format bestaudio/best",
		"--no-playlist",
		"--proxy http://proxy:8080",
		"--cookies /tmp/cookies.txt",
		"--extractor-args youtube:player_client=web",
		"https://youtu.be/abc",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q in %q", want, joined)
		}
	}
	if runner.gotName != "yt-dlp" {
		t.Errorf("binary = %q, want yt-dlp", runner.gotName)
	}
}

func TestYtDlpAndroidWithoutTokenFallsBack(t *testing.T) {
	f := NewYtDlpFetcher(&stubRunner{}, YtDlpOptions{PlayerClient: "android"})
	if got := f.extractorArgs(); got != "youtube:player_client=default" {
		t.Errorf("extractorArgs() = %q, want default fallback", got)
	}

	f = NewYtDlpFetcher(&stubRunner{}, YtDlpOptions{PlayerClient: "android", POToken: "tok"})
	if got := f.extractorArgs(); got != "youtube:player_client=android;po_token=tok" {
		t.Errorf("extractorArgs() with token = %q", got)
	}
}

func TestYtDlpErrorClassification(t *testing.T) {
	tests := []struct {
		stderr string
		want   domain.FailureKind
	}{
		{"ERROR: Video unavailable", domain.FailureFatal},
		{"ERROR: Unsupported URL: https://x", domain.FailureFatal},
		{"ERROR: unable to download video data: HTTP Error 500", domain.FailureTransient},
		{"ERROR: connection reset by peer", domain.FailureTransient},
		{"something else entirely", domain.FailureFatal},
	}

	for _, tt := range tests {
		runner := &stubRunner{
			result: proc.Result{Stderr: tt.stderr, ExitCode: 1},
			err:    errors.New("exit status 1"),
		}
		f := NewYtDlpFetcher(runner, YtDlpOptions{})
		_, err := f.Fetch(context.Background(), orchestrator.FetchRequest{
			URL:     "https://youtu.be/abc",
			WorkDir: t.TempDir(),
		})
		if err == nil {
			t.Fatalf("stderr %q: expected error", tt.stderr)
		}
		if f := domain.Classify(err); f.Kind != tt.want {
			t.Errorf("stderr %q classified as %s, want %s", tt.stderr, f.Kind, tt.want)
		}
	}
}

func TestYtDlpNoOutputIsFatal(t *testing.T) {
	f := NewYtDlpFetcher(&stubRunner{}, YtDlpOptions{})
	_, err := f.Fetch(context.Background(), orchestrator.FetchRequest{
		URL:     "https://youtu.be/abc",
		WorkDir: t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected error when no file was produced")
	}
	if f := domain.Classify(err); f.Kind != domain.FailureFatal {
		t.Errorf("missing output classified as %s, want fatal", f.Kind)
	}
}
