package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/maneesh/vidvault/internal/chunker"
	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vidvault-ingest")

var (
	ErrNoFilePart         = errors.New("no file uploaded")
	ErrUnsupportedType    = errors.New("unsupported video type")
	ErrSizeLimitExceeded  = errors.New("upload exceeds size limit")
	ErrStorageWriteFailed = errors.New("failed to store upload")
)

// acceptedExtensions lists the container formats accepted for upload
var acceptedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".ogv":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".wmv":  true,
	".m4v":  true,
}

// Accepts reports whether an upload with this name and declared type may be stored
func Accepts(filename, mimeType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if !strings.HasPrefix(mediaType, "video/") {
		return false
	}
	return acceptedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Pipeline persists an uploaded stream to the blob store and only then
// records it in the catalog.
type Pipeline struct {
	blobs    storage.BlobStore
	catalog  storage.Catalog
	maxBytes int64
}

// NewPipeline creates an ingestion pipeline bounded to maxBytes per upload
func NewPipeline(blobs storage.BlobStore, catalog storage.Catalog, maxBytes int64) *Pipeline {
	return &Pipeline{
		blobs:    blobs,
		catalog:  catalog,
		maxBytes: maxBytes,
	}
}

// MaxBytes returns the per-upload size bound
func (p *Pipeline) MaxBytes() int64 {
	return p.maxBytes
}

// Ingest validates the declared name and type, streams r into the blob store
// under a generated storage name and creates the catalog record.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader, filename, mimeType string) (*models.Video, error) {
	ctx, span := tracer.Start(ctx, "ingest",
		trace.WithAttributes(
			attribute.String("original_name", filename),
			attribute.String("mime_type", mimeType),
		),
	)
	defer span.End()

	if !Accepts(filename, mimeType) {
		return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, filename, mimeType)
	}

	storageName := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	span.SetAttributes(attribute.String("storage_name", storageName))

	log.Printf("Ingesting upload %q as %s", filename, storageName)
	n, err := p.blobs.Put(ctx, storageName, chunker.LimitReader(r, p.maxBytes))
	if err != nil {
		span.RecordError(err)
		p.discard(storageName)
		var maxBytesErr *http.MaxBytesError
		if errors.Is(err, chunker.ErrLimitExceeded) || errors.As(err, &maxBytesErr) {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrSizeLimitExceeded, p.maxBytes)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}

	video, err := p.catalog.Create(ctx, models.NewVideo{
		StorageName:  storageName,
		OriginalName: filename,
		MimeType:     mimeType,
		SizeBytes:    n,
	})
	if err != nil {
		span.RecordError(err)
		p.discard(storageName)
		return nil, fmt.Errorf("failed to create video record: %w", err)
	}

	span.SetAttributes(
		attribute.String("video_id", video.ID),
		attribute.Int64("size_bytes", n),
	)
	log.Printf("Ingested video %s (%d bytes)", video.ID, n)
	return video, nil
}

func (p *Pipeline) discard(storageName string) {
	if err := p.blobs.Remove(context.Background(), storageName); err != nil {
		log.Printf("Warning: failed to remove partial upload %s: %v", storageName, err)
	}
}
