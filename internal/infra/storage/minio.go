// Package storage publishes rendered transcripts. The MinIO publisher
// uploads to object storage and hands out presigned download URLs; the
// local publisher keeps artifacts on the filesystem for single-node
// setups without object storage.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/scribe-audio/scribed/internal/domain"
)

// MinioConfig holds object storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PresignExpiry bounds how long download URLs stay valid.
	PresignExpiry time.Duration
}

// MinioPublisher uploads artifacts to a MinIO/S3 bucket under
// transcripts/<task-id>/<filename> and resolves stored object keys to
// presigned GET URLs.
type MinioPublisher struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinioPublisher connects the client. It does not touch the bucket;
// EnsureBucket does that explicitly during startup.
func NewMinioPublisher(cfg MinioConfig) (*MinioPublisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinioPublisher{client: client, bucket: cfg.Bucket, expiry: expiry}, nil
}

// EnsureBucket creates the bucket when missing.
func (p *MinioPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
	}
	return nil
}

// Ping verifies the endpoint is reachable without creating anything.
func (p *MinioPublisher) Ping(ctx context.Context) error {
	_, err := p.client.BucketExists(ctx, p.bucket)
	return err
}

// Publish uploads localPath and returns the artifact descriptor with
// the object key as its location. Upload failures classify as transient.
func (p *MinioPublisher) Publish(ctx context.Context, taskID, localPath string, format domain.OutputFormat) (domain.Artifact, error) {
	fileName := filepath.Base(localPath)
	objectKey := fmt.Sprintf("transcripts/%s/%s", taskID, fileName)

	contentType := "text/plain; charset=utf-8"
	if format == domain.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}

	info, err := p.client.FPutObject(ctx, p.bucket, objectKey, localPath,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return domain.Artifact{}, domain.Transient(fmt.Errorf("upload %s: %w", objectKey, err))
	}

	return domain.Artifact{
		FileName:  fileName,
		Location:  objectKey,
		SizeBytes: info.Size,
		Format:    string(format),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ResolveURL presigns a GET URL for a stored object key.
func (p *MinioPublisher) ResolveURL(ctx context.Context, location string) (string, error) {
	u, err := p.client.PresignedGetObject(ctx, p.bucket, location, p.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", location, err)
	}
	return u.String(), nil
}
