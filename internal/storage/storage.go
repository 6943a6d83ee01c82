// Package storage moves event objects between a bucket-style store and local files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore downloads and uploads whole objects.
type ObjectStore interface {
	// Download writes bucket/key to the local file dst.
	Download(ctx context.Context, bucket, key, dst string) error
	// Upload stores the local file src as bucket/key.
	Upload(ctx context.Context, bucket, key, src string) error
}

// LocalStore keeps objects under Root/<bucket>/<key>. It backs local runs and tests
// of the event handler without cloud access.
type LocalStore struct {
	Root string
}

func (s LocalStore) Download(ctx context.Context, bucket, key, dst string) error {
	src, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	return writeFile(dst, in)
}

func (s LocalStore) Upload(ctx context.Context, bucket, key, src string) error {
	dst, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return writeFile(dst, in)
}

func (s LocalStore) path(bucket, key string) (string, error) {
	if s.Root == "" {
		return "", errors.New("local store root is not set")
	}
	if !filepath.IsLocal(bucket) || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid object location %q/%q", bucket, key)
	}
	return filepath.Join(s.Root, bucket, filepath.FromSlash(key)), nil
}

func writeFile(dst string, r io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
