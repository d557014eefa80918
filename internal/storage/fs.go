package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FSBlobStore keeps blobs as plain files under a root directory.
// Keys are slash-separated relative paths such as "<uuid>.mp4" or
// "thumbnails/<id>.jpg".
type FSBlobStore struct {
	root string
}

var _ BlobStore = (*FSBlobStore)(nil)

// NewFSBlobStore creates root (and its thumbnails area) if needed
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "thumbnails"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", abs, err)
	}
	return &FSBlobStore{root: abs}, nil
}

// Root returns the absolute directory holding the blobs
func (s *FSBlobStore) Root() string {
	return s.root
}

func (s *FSBlobStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || clean == "." || filepath.IsAbs(clean) ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes r to a temporary file next to the destination and renames it
// into place once fully written and synced.
func (s *FSBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	ctx, span := tracer.Start(ctx, "fs.put",
		trace.WithAttributes(
			attribute.String("blob_key", key),
		),
	)
	defer span.End()

	dst, err := s.path(key)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		span.RecordError(err)
		return n, fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		span.RecordError(err)
		return n, fmt.Errorf("failed to sync blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		span.RecordError(err)
		return n, fmt.Errorf("failed to close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		span.RecordError(err)
		return n, fmt.Errorf("failed to move blob %s into place: %w", key, err)
	}
	_ = syncDir(dir)

	span.SetAttributes(attribute.Int64("size_bytes", n))
	return n, nil
}

type fsBlob struct {
	*os.File
	size int64
}

func (b *fsBlob) Size() int64 { return b.size }

// Open opens key for positioned reads
func (s *FSBlobStore) Open(ctx context.Context, key string) (Blob, error) {
	_, span := tracer.Start(ctx, "fs.open",
		trace.WithAttributes(
			attribute.String("blob_key", key),
		),
	)
	defer span.End()

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrBlobNotFound, key)
	}

	span.SetAttributes(attribute.Int64("size_bytes", fi.Size()))
	return &fsBlob{File: f, size: fi.Size()}, nil
}

// Stat returns the size of key
func (s *FSBlobStore) Stat(ctx context.Context, key string) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	} else if err != nil {
		return 0, fmt.Errorf("failed to stat blob %s: %w", key, err)
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrBlobNotFound, key)
	}
	return fi.Size(), nil
}

// Remove deletes key; a missing file is not an error
func (s *FSBlobStore) Remove(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "fs.remove",
		trace.WithAttributes(
			attribute.String("blob_key", key),
		),
	)
	defer span.End()

	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		span.RecordError(err)
		return fmt.Errorf("failed to remove blob %s: %w", key, err)
	}
	return nil
}

// Locate returns the absolute file path of key
func (s *FSBlobStore) Locate(ctx context.Context, key string) (string, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		return "", err
	}
	return s.path(key)
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
