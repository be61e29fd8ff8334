package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"matchbook/internal/contextutil"
)

// S3Config holds connection settings for an S3-compatible object store
// (MinIO, AWS S3, or any provider speaking the S3 API).
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// PublicURL is the externally reachable base for object links, e.g. a
	// CDN domain. Empty means links are built from the endpoint.
	PublicURL string
}

// S3Archive implements Archive on an S3-compatible bucket.
type S3Archive struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3Archive connects to the object store and verifies the bucket exists.
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("archive bucket %q does not exist", cfg.Bucket)
	}

	return &S3Archive{client: client, cfg: cfg}, nil
}

func (a *S3Archive) objectName(path string) string {
	if a.cfg.Prefix == "" {
		return path
	}
	return strings.TrimSuffix(a.cfg.Prefix, "/") + "/" + path
}

// Put uploads content at path, replacing any existing object.
func (a *S3Archive) Put(ctx context.Context, path string, content []byte) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	_, err := a.client.PutObject(ctx, a.cfg.Bucket, a.objectName(path),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upload archive object", "path", path, "error", err)
		return "", fmt.Errorf("failed to upload archive object: %w", err)
	}
	return a.Link(path), nil
}

// Get downloads the object at path.
func (a *S3Archive) Get(ctx context.Context, path string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.cfg.Bucket, a.objectName(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive object: %w", err)
	}
	defer func() {
		_ = obj.Close()
	}()

	content, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read archive object: %w", err)
	}
	return content, nil
}

// List returns the paths of all objects under prefix, with the configured
// bucket prefix stripped.
func (a *S3Archive) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    a.objectName(prefix),
		Recursive: true,
	}

	var paths []string
	for obj := range a.client.ListObjects(ctx, a.cfg.Bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list archive objects: %w", obj.Err)
		}
		name := obj.Key
		if a.cfg.Prefix != "" {
			name = strings.TrimPrefix(name, strings.TrimSuffix(a.cfg.Prefix, "/")+"/")
		}
		paths = append(paths, name)
	}
	return paths, nil
}

// Delete removes the object at path. S3 deletes are idempotent so absent
// paths are a no-op.
func (a *S3Archive) Delete(ctx context.Context, path string) error {
	err := a.client.RemoveObject(ctx, a.cfg.Bucket, a.objectName(path), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete archive object: %w", err)
	}
	return nil
}

// DeletePrefix lists and removes every object under prefix.
func (a *S3Archive) DeletePrefix(ctx context.Context, prefix string) error {
	logger := contextutil.LoggerFromContext(ctx)

	paths, err := a.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := a.Delete(ctx, path); err != nil {
			logger.ErrorContext(ctx, "failed to delete archive object under prefix", "prefix", prefix, "path", path, "error", err)
			return err
		}
	}
	return nil
}

// Link builds the public URL for the object.
func (a *S3Archive) Link(path string) string {
	if a.cfg.PublicURL != "" {
		return strings.TrimSuffix(a.cfg.PublicURL, "/") + "/" + a.objectName(path)
	}
	scheme := "http"
	if a.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, a.cfg.Endpoint, a.cfg.Bucket, a.objectName(path))
}
