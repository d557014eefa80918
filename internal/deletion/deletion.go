package deletion

import (
	"context"
	"log"

	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vidvault-deletion")

// Coordinator retires a video's file, thumbnail and record.
//
// The blobs are removed before the record so a live record never points at
// a file we already tried to delete; a crash in between leaves a record
// whose requests answer 404 until it is deleted again.
type Coordinator struct {
	catalog storage.Catalog
	blobs   storage.BlobStore
}

// NewCoordinator creates a deletion coordinator
func NewCoordinator(catalog storage.Catalog, blobs storage.BlobStore) *Coordinator {
	return &Coordinator{catalog: catalog, blobs: blobs}
}

// Delete removes the video file, any cached thumbnail and finally the
// record. It returns storage.ErrNotFound for an unknown id.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "delete_video",
		trace.WithAttributes(
			attribute.String("video_id", id),
		),
	)
	defer span.End()

	video, err := c.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := c.blobs.Remove(ctx, video.StorageName); err != nil {
		span.RecordError(err)
		log.Printf("Warning: failed to remove file %s of video %s: %v", video.StorageName, id, err)
	}
	if err := c.blobs.Remove(ctx, models.ThumbnailKey(id)); err != nil {
		span.RecordError(err)
		log.Printf("Warning: failed to remove thumbnail of video %s: %v", id, err)
	}

	if err := c.catalog.DeleteByID(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	// A generation that re-checked the record before it was deleted may have
	// published a thumbnail after the first removal.
	if err := c.blobs.Remove(ctx, models.ThumbnailKey(id)); err != nil {
		span.RecordError(err)
		log.Printf("Warning: failed to remove thumbnail of video %s: %v", id, err)
	}

	log.Printf("Deleted video: %s", id)
	return nil
}
