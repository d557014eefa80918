package storage

import (
	"context"
	"log"

	"github.com/maneesh/vidvault/internal/models"
)

// MetadataCache is a best-effort lookaside cache for video records
type MetadataCache interface {
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	SetVideo(ctx context.Context, video *models.Video) error
	InvalidateVideo(ctx context.Context, id string) error
}

// CachedCatalog serves GetByID from a MetadataCache before falling back to
// the wrapped catalog. Cache errors are logged and never fail a call.
type CachedCatalog struct {
	Catalog
	cache MetadataCache
}

// NewCachedCatalog wraps catalog with a read-through cache
func NewCachedCatalog(catalog Catalog, cache MetadataCache) *CachedCatalog {
	return &CachedCatalog{Catalog: catalog, cache: cache}
}

// GetByID tries the cache first and fills it on a miss
func (c *CachedCatalog) GetByID(ctx context.Context, id string) (*models.Video, error) {
	video, err := c.cache.GetVideo(ctx, id)
	if err != nil {
		log.Printf("Warning: cache lookup failed for video %s: %v", id, err)
	} else if video != nil {
		return video, nil
	}

	video, err = c.Catalog.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetVideo(ctx, video); err != nil {
		log.Printf("Warning: failed to update cache: %v", err)
	}
	return video, nil
}

// DeleteByID invalidates the cached record before and after removing it,
// so a concurrent read-through cannot re-populate a deleted record for long.
func (c *CachedCatalog) DeleteByID(ctx context.Context, id string) error {
	if err := c.cache.InvalidateVideo(ctx, id); err != nil {
		log.Printf("Warning: failed to invalidate cache: %v", err)
	}

	if err := c.Catalog.DeleteByID(ctx, id); err != nil {
		return err
	}

	if err := c.cache.InvalidateVideo(ctx, id); err != nil {
		log.Printf("Warning: failed to invalidate cache: %v", err)
	}
	return nil
}
