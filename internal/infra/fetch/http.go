package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

// HTTPFetcher downloads a media file over plain HTTP(S), streaming the
// body straight to disk.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher with an optional forward proxy.
func NewHTTPFetcher(proxy string, timeout time.Duration) (*HTTPFetcher, error) {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &HTTPFetcher{client: &http.Client{Transport: transport, Timeout: timeout}}, nil
}

// Fetch downloads req.URL into req.WorkDir and returns the local path.
// Network errors and 5xx responses are transient; 4xx responses mean
// the source itself is bad and are fatal.
func (f *HTTPFetcher) Fetch(ctx context.Context, req orchestrator.FetchRequest) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", domain.Fatalf("build request: %v", err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return "", classifyNetErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return "", domain.Transient(fmt.Errorf("source returned %s", resp.Status))
	case resp.StatusCode >= 400:
		return "", domain.Fatalf("source returned %s", resp.Status)
	}

	dest := filepath.Join(req.WorkDir, sourceFileName(req.URL, resp.Header.Get("Content-Type")))
	out, err := os.Create(dest)
	if err != nil {
		return "", domain.Fatalf("create download file: %v", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return "", classifyNetErr(err)
	}
	return dest, nil
}

// classifyNetErr treats timeouts and connection-level failures as
// transient, anything else as fatal.
func classifyNetErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return &domain.Failure{Kind: domain.FailureCancelled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.Transient(err)
	}
	msg := err.Error()
	for _, hint := range []string{"connection refused", "connection reset", "no such host", "EOF", "broken pipe"} {
		if strings.Contains(msg, hint) {
			return domain.Transient(err)
		}
	}
	return domain.Fatal(err)
}

// sourceFileName derives a local filename for the download. The URL
// path extension wins; the content type is a fallback.
func sourceFileName(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return "source" + ext
		}
	}
	switch {
	case strings.HasPrefix(contentType, "audio/mpeg"):
		return "source.mp3"
	case strings.HasPrefix(contentType, "audio/wav"), strings.HasPrefix(contentType, "audio/x-wav"):
		return "source.wav"
	case strings.HasPrefix(contentType, "video/mp4"):
		return "source.mp4"
	case strings.HasPrefix(contentType, "video/webm"), strings.HasPrefix(contentType, "audio/webm"):
		return "source.webm"
	case strings.HasPrefix(contentType, "audio/ogg"):
		return "source.ogg"
	}
	return "source.bin"
}
