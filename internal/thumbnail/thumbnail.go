package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("vidvault-thumbnail")

// ErrGenerationFailed is shared by every caller waiting on a failed attempt
var ErrGenerationFailed = errors.New("failed to generate thumbnail")

// DefaultTimeout bounds one generation attempt when none is configured
const DefaultTimeout = 30 * time.Second

// Orchestrator returns cached thumbnails and generates missing ones,
// running at most one extraction per video at a time.
type Orchestrator struct {
	catalog   storage.Catalog
	blobs     storage.BlobStore
	extractor Extractor
	timeout   time.Duration
	tempDir   string

	inflight singleflight.Group
}

// NewOrchestrator creates an orchestrator. Temporary frames are written to
// tempDir, or the system temp directory when it is empty.
func NewOrchestrator(
	catalog storage.Catalog,
	blobs storage.BlobStore,
	extractor Extractor,
	timeout time.Duration,
	tempDir string,
) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		catalog:   catalog,
		blobs:     blobs,
		extractor: extractor,
		timeout:   timeout,
		tempDir:   tempDir,
	}
}

// Get returns the JPEG thumbnail for id, generating it on first request.
// It fails with storage.ErrNotFound when the record or its file is gone.
func (o *Orchestrator) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "get_thumbnail",
		trace.WithAttributes(
			attribute.String("video_id", id),
		),
	)
	defer span.End()

	video, err := o.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := o.blobs.Stat(ctx, video.StorageName); err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, fmt.Errorf("%w: file for video %s", storage.ErrNotFound, id)
		}
		span.RecordError(err)
		return nil, err
	}

	data, ok, err := o.cached(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if ok {
		span.SetAttributes(attribute.String("cache_status", "hit"))
		return data, nil
	}

	ch := o.inflight.DoChan(id, func() (any, error) {
		return o.generate(ctx, video)
	})

	select {
	case res := <-ch:
		span.SetAttributes(attribute.Bool("shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) cached(ctx context.Context, id string) ([]byte, bool, error) {
	blob, err := o.blobs.Open(ctx, models.ThumbnailKey(id))
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	defer blob.Close()

	data, err := io.ReadAll(io.NewSectionReader(blob, 0, blob.Size()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read thumbnail for %s: %w", id, err)
	}
	return data, true, nil
}

// generate runs detached from the cancellation of the caller that started
// it, since other callers may be waiting on the same attempt.
func (o *Orchestrator) generate(parent context.Context, video *models.Video) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "generate_thumbnail",
		trace.WithAttributes(
			attribute.String("video_id", video.ID),
		),
	)
	defer span.End()

	// An attempt that finished just before this one started has already
	// stored the artifact.
	if data, ok, err := o.cached(ctx, video.ID); err == nil && ok {
		return data, nil
	}

	input, err := o.blobs.Locate(ctx, video.StorageName)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, fmt.Errorf("%w: file for video %s", storage.ErrNotFound, video.ID)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	tmp, err := os.CreateTemp(o.tempDir, "thumb-"+video.ID+"-*.jpg")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	log.Printf("Generating thumbnail for video: %s", video.ID)
	if err := o.extractor.Extract(ctx, input, tmpName); err != nil {
		span.RecordError(err)
		log.Printf("Thumbnail generation failed for %s: %v", video.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	data, err := os.ReadFile(tmpName)
	if err != nil || len(data) == 0 {
		if err == nil {
			err = errors.New("empty frame")
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	// Put publishes atomically, so readers never see a partial frame
	key := models.ThumbnailKey(video.ID)
	if _, err := o.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	// The video may have been deleted while ffmpeg was running
	if _, err := o.catalog.GetByID(ctx, video.ID); errors.Is(err, storage.ErrNotFound) {
		if rmErr := o.blobs.Remove(ctx, key); rmErr != nil {
			log.Printf("Warning: failed to remove thumbnail of deleted video %s: %v", video.ID, rmErr)
		}
		return nil, fmt.Errorf("%w: video %s deleted during thumbnail generation", storage.ErrNotFound, video.ID)
	} else if err != nil {
		span.RecordError(err)
		log.Printf("Warning: could not confirm video %s after storing thumbnail: %v", video.ID, err)
	}

	span.SetAttributes(attribute.Int("size_bytes", len(data)))
	log.Printf("Thumbnail stored for video: %s", video.ID)
	return data, nil
}
