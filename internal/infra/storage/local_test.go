package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribe-audio/scribed/internal/domain"
)

func TestLocalPublisherRoundTrip(t *testing.T) {
	root := t.TempDir()
	p, err := NewLocalPublisher(root)
	if err != nil {
		t.Fatalf("NewLocalPublisher() error: %v", err)
	}

	src := filepath.Join(t.TempDir(), "transcript.txt")
	if err := os.WriteFile(src, []byte("hello world\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	art, err := p.Publish(context.Background(), "task-1", src, domain.FormatText)
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if art.FileName != "transcript.txt" {
		t.Errorf("FileName = %q", art.FileName)
	}
	if art.SizeBytes != int64(len("hello world\n")) {
		t.Errorf("SizeBytes = %d", art.SizeBytes)
	}

	want := filepath.Join(root, "transcripts", "task-1", "transcript.txt")
	if art.Location != want {
		t.Errorf("Location = %q, want %q", art.Location, want)
	}
	data, err := os.ReadFile(art.Location)
	if err != nil {
		t.Fatalf("read stored artifact: %v", err)
	}
	if string(data) != "hello world\n" {
		t.Errorf("stored content = %q", data)
	}

	url, err := p.ResolveURL(context.Background(), art.Location)
	if err != nil {
		t.Fatalf("ResolveURL() error: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("ResolveURL() = %q, want a file URL", url)
	}
}
