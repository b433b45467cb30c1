package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/scribe-audio/scribed/internal/domain"
)

// LocalPublisher copies artifacts into a directory tree mirroring the
// object layout: <root>/transcripts/<task-id>/<filename>.
type LocalPublisher struct {
	root string
}

// NewLocalPublisher builds a filesystem publisher rooted at dir.
func NewLocalPublisher(dir string) (*LocalPublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalPublisher{root: dir}, nil
}

// Publish copies localPath under the artifact root. The stored location
// is the absolute destination path.
func (p *LocalPublisher) Publish(ctx context.Context, taskID, localPath string, format domain.OutputFormat) (domain.Artifact, error) {
	fileName := filepath.Base(localPath)
	destDir := filepath.Join(p.root, "transcripts", taskID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return domain.Artifact{}, domain.Fatalf("create artifact dir: %v", err)
	}
	dest := filepath.Join(destDir, fileName)

	size, err := copyFile(localPath, dest)
	if err != nil {
		return domain.Artifact{}, domain.Fatalf("store artifact: %v", err)
	}

	return domain.Artifact{
		FileName:  fileName,
		Location:  dest,
		SizeBytes: size,
		Format:    string(format),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ResolveURL returns a file URL for the stored path.
func (p *LocalPublisher) ResolveURL(ctx context.Context, location string) (string, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return 0, err
	}
	return n, out.Close()
}
