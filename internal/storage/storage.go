package storage

import (
	"context"
	"errors"
	"io"

	"github.com/maneesh/vidvault/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("vidvault-storage")

var (
	// ErrNotFound is returned by a Catalog when no record has the given id
	ErrNotFound = errors.New("video not found")

	// ErrBlobNotFound is returned by a BlobStore when no object exists at a key
	ErrBlobNotFound = errors.New("blob not found")
)

// Catalog is the persistent record store for video metadata
type Catalog interface {
	Create(ctx context.Context, v models.NewVideo) (*models.Video, error)
	ListAll(ctx context.Context) ([]*models.Video, error)
	GetByID(ctx context.Context, id string) (*models.Video, error)
	DeleteByID(ctx context.Context, id string) error
}

// Blob is an open, read-only handle on a stored object.
// Reads are positioned so many readers can share one backing file.
type Blob interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// BlobStore holds raw video bytes and derived thumbnails addressed by
// system-generated keys.
type BlobStore interface {
	// Put streams r to key. The object becomes visible only once the whole
	// stream has been written; on error nothing is left at key.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns ErrBlobNotFound when key does not exist.
	Open(ctx context.Context, key string) (Blob, error)
	// Stat returns the object's size or ErrBlobNotFound.
	Stat(ctx context.Context, key string) (int64, error)
	// Remove deletes key. A missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Locate returns an input locator (path or URL) an external tool can read.
	Locate(ctx context.Context, key string) (string, error)
}
