// Package fetch downloads source media. Two variants exist: a plain
// HTTP download for direct media URLs and a yt-dlp subprocess for
// platform-hosted videos. The router picks one per request.
package fetch

import (
	"context"
	"regexp"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

var youtubeRe = regexp.MustCompile(`(?i)^https?://(www\.|m\.|music\.)?(youtube\.com|youtu\.be)/`)

// DetectKind classifies a media URL by host. Anything that is not a
// recognised video platform is fetched as a direct URL.
func DetectKind(url string) domain.SourceKind {
	if youtubeRe.MatchString(url) {
		return domain.SourceYouTube
	}
	return domain.SourceURL
}

// Router dispatches fetch requests to the variant matching the source
// kind. It is the only Fetcher the orchestrator sees.
type Router struct {
	Direct   orchestrator.Fetcher
	Platform orchestrator.Fetcher
}

// Fetch selects the fetcher by the request's source kind.
func (r *Router) Fetch(ctx context.Context, req orchestrator.FetchRequest) (string, error) {
	switch req.Kind {
	case domain.SourceYouTube:
		return r.Platform.Fetch(ctx, req)
	case domain.SourceURL:
		return r.Direct.Fetch(ctx, req)
	default:
		return "", domain.Fatal(domain.ErrUnsupportedSource)
	}
}
