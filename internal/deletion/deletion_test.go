package deletion

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Coordinator, *storage.FSBlobStore, *storage.SQLCatalog) {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewFSBlobStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	catalog, err := storage.NewSQLCatalog(storage.DriverSQLite, filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	return NewCoordinator(catalog, blobs), blobs, catalog
}

func addVideo(t *testing.T, blobs storage.BlobStore, catalog storage.Catalog, withThumb bool) *models.Video {
	t.Helper()
	ctx := context.Background()
	_, err := blobs.Put(ctx, "v.mp4", strings.NewReader("video bytes"))
	require.NoError(t, err)
	v, err := catalog.Create(ctx, models.NewVideo{StorageName: "v.mp4", MimeType: "video/mp4", SizeBytes: 11})
	require.NoError(t, err)
	if withThumb {
		_, err = blobs.Put(ctx, models.ThumbnailKey(v.ID), strings.NewReader("jpeg"))
		require.NoError(t, err)
	}
	return v
}

func TestDeleteRemovesEverything(t *testing.T) {
	c, blobs, catalog := setup(t)
	ctx := context.Background()
	v := addVideo(t, blobs, catalog, true)

	require.NoError(t, c.Delete(ctx, v.ID))

	_, err := blobs.Stat(ctx, v.StorageName)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
	_, err = blobs.Stat(ctx, models.ThumbnailKey(v.ID))
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
	_, err = catalog.GetByID(ctx, v.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteTwice(t *testing.T) {
	c, blobs, catalog := setup(t)
	v := addVideo(t, blobs, catalog, false)

	assert.NoError(t, c.Delete(context.Background(), v.ID))
	assert.ErrorIs(t, c.Delete(context.Background(), v.ID), storage.ErrNotFound)
}

func TestDeleteUnknownHasNoSideEffects(t *testing.T) {
	c, blobs, catalog := setup(t)
	ctx := context.Background()
	v := addVideo(t, blobs, catalog, true)

	assert.ErrorIs(t, c.Delete(ctx, "does-not-exist"), storage.ErrNotFound)

	_, err := blobs.Stat(ctx, v.StorageName)
	assert.NoError(t, err)
	_, err = catalog.GetByID(ctx, v.ID)
	assert.NoError(t, err)
}

func TestDeleteWithFileAlreadyGone(t *testing.T) {
	c, blobs, catalog := setup(t)
	ctx := context.Background()
	v := addVideo(t, blobs, catalog, false)
	require.NoError(t, blobs.Remove(ctx, v.StorageName))

	require.NoError(t, c.Delete(ctx, v.ID))
	_, err := catalog.GetByID(ctx, v.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// orderRecorder records the order of blob and catalog removals
type orderRecorder struct {
	storage.BlobStore
	steps  *[]string
	failRm bool
}

func (o orderRecorder) Remove(ctx context.Context, key string) error {
	*o.steps = append(*o.steps, "remove "+key)
	if o.failRm {
		return errors.New("permission denied")
	}
	return o.BlobStore.Remove(ctx, key)
}

type recordingCatalog struct {
	storage.Catalog
	steps *[]string
}

func (r recordingCatalog) DeleteByID(ctx context.Context, id string) error {
	*r.steps = append(*r.steps, "delete record")
	return r.Catalog.DeleteByID(ctx, id)
}

func TestDeleteRemovesFilesBeforeRecord(t *testing.T) {
	_, blobs, catalog := setup(t)
	v := addVideo(t, blobs, catalog, false)

	var steps []string
	c := NewCoordinator(
		recordingCatalog{Catalog: catalog, steps: &steps},
		orderRecorder{BlobStore: blobs, steps: &steps},
	)
	require.NoError(t, c.Delete(context.Background(), v.ID))

	assert.Equal(t, []string{
		"remove v.mp4",
		"remove " + models.ThumbnailKey(v.ID),
		"delete record",
		"remove " + models.ThumbnailKey(v.ID),
	}, steps)
}

func TestDeleteStillRemovesRecordWhenFileRemovalFails(t *testing.T) {
	_, blobs, catalog := setup(t)
	v := addVideo(t, blobs, catalog, false)

	var steps []string
	c := NewCoordinator(catalog, orderRecorder{BlobStore: blobs, steps: &steps, failRm: true})
	require.NoError(t, c.Delete(context.Background(), v.ID))

	_, err := catalog.GetByID(context.Background(), v.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// lateThumbnailCatalog publishes a thumbnail right before the record goes,
// the way a generation that finished mid-delete would.
type lateThumbnailCatalog struct {
	storage.Catalog
	blobs storage.BlobStore
}

func (l lateThumbnailCatalog) DeleteByID(ctx context.Context, id string) error {
	if _, err := l.blobs.Put(ctx, models.ThumbnailKey(id), strings.NewReader("late jpeg")); err != nil {
		return err
	}
	return l.Catalog.DeleteByID(ctx, id)
}

func TestDeleteRemovesThumbnailPublishedDuringDelete(t *testing.T) {
	_, blobs, catalog := setup(t)
	ctx := context.Background()
	v := addVideo(t, blobs, catalog, false)

	c := NewCoordinator(lateThumbnailCatalog{Catalog: catalog, blobs: blobs}, blobs)
	require.NoError(t, c.Delete(ctx, v.ID))

	_, err := blobs.Stat(ctx, models.ThumbnailKey(v.ID))
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}
