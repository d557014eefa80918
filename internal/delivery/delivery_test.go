package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/maneesh/vidvault/internal/chunker"
	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  *Engine
	blobs   *storage.FSBlobStore
	catalog *storage.SQLCatalog
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	blobs, err := storage.NewFSBlobStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	catalog, err := storage.NewSQLCatalog(storage.DriverSQLite, filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	return fixture{
		engine:  NewEngine(catalog, blobs, chunker.NewChunker(1024)),
		blobs:   blobs,
		catalog: catalog,
	}
}

func (f fixture) addVideo(t *testing.T, storageName, mimeType string, payload []byte) *models.Video {
	t.Helper()
	ctx := context.Background()
	_, err := f.blobs.Put(ctx, storageName, bytes.NewReader(payload))
	require.NoError(t, err)
	v, err := f.catalog.Create(ctx, models.NewVideo{
		StorageName: storageName,
		MimeType:    mimeType,
		SizeBytes:   int64(len(payload)),
	})
	require.NoError(t, err)
	return v
}

func testPayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func (f fixture) fetch(t *testing.T, id, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	resp, err := f.engine.Serve(context.Background(), id, rangeHeader)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	_, err = f.engine.Write(context.Background(), rec, resp)
	require.NoError(t, err)
	return rec
}

func TestServeFullFile(t *testing.T) {
	f := newFixture(t)
	payload := testPayload(10_000)
	v := f.addVideo(t, "full.mp4", "video/mp4", payload)

	rec := f.fetch(t, v.ID, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10000", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestServeRanges(t *testing.T) {
	f := newFixture(t)
	payload := testPayload(5000)
	v := f.addVideo(t, "ranged.webm", "video/webm", payload)

	tests := []struct {
		header       string
		start, end   int
		contentRange string
	}{
		{"bytes=0-99", 0, 99, "bytes 0-99/5000"},
		{"bytes=4900-", 4900, 4999, "bytes 4900-4999/5000"},
		{"bytes=1234-1234", 1234, 1234, "bytes 1234-1234/5000"},
		{"bytes=4000-999999", 4000, 4999, "bytes 4000-4999/5000"},
		{"bytes=0-", 0, 4999, "bytes 0-4999/5000"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			rec := f.fetch(t, v.ID, tt.header)

			assert.Equal(t, http.StatusPartialContent, rec.Code)
			assert.Equal(t, tt.contentRange, rec.Header().Get("Content-Range"))
			assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
			assert.Equal(t, payload[tt.start:tt.end+1], rec.Body.Bytes())
			assert.Equal(t, len(rec.Body.Bytes()), tt.end-tt.start+1)
			assert.Equal(t, rec.Header().Get("Content-Length"), strconv.Itoa(tt.end-tt.start+1))
		})
	}
}

func TestServeUnsatisfiableRange(t *testing.T) {
	f := newFixture(t)
	v := f.addVideo(t, "short.mp4", "video/mp4", testPayload(100))

	for _, header := range []string{"bytes=100-", "bytes=5000-6000", "bytes=abc-10"} {
		t.Run(header, func(t *testing.T) {
			rec := f.fetch(t, v.ID, header)

			assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
			assert.Equal(t, "bytes */100", rec.Header().Get("Content-Range"))
			assert.Empty(t, rec.Body.Bytes())
		})
	}
}

func TestServeUsesLiveFileSize(t *testing.T) {
	f := newFixture(t)
	payload := testPayload(300)
	v := f.addVideo(t, "drift.mp4", "video/mp4", payload)

	// Rewrite the file behind the catalog's back
	_, err := f.blobs.Put(context.Background(), v.StorageName, bytes.NewReader(payload[:120]))
	require.NoError(t, err)

	rec := f.fetch(t, v.ID, "")
	assert.Equal(t, "120", rec.Header().Get("Content-Length"))
	assert.Equal(t, payload[:120], rec.Body.Bytes())
}

func TestServeUnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Serve(context.Background(), "nope", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotErrorIs(t, err, ErrFileMissing)
}

func TestServeFileMissing(t *testing.T) {
	f := newFixture(t)
	v := f.addVideo(t, "gone.mp4", "video/mp4", testPayload(10))
	require.NoError(t, f.blobs.Remove(context.Background(), v.StorageName))

	_, err := f.engine.Serve(context.Background(), v.ID, "bytes=0-1")
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		video models.Video
		want  string
	}{
		{models.Video{MimeType: "video/webm", StorageName: "a.mp4"}, "video/webm"},
		{models.Video{StorageName: "a.MOV"}, "video/quicktime"},
		{models.Video{MimeType: "  ", StorageName: "a.mkv"}, "video/x-matroska"},
		{models.Video{StorageName: "a.bin"}, "application/octet-stream"},
		{models.Video{StorageName: "noext"}, "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentType(&tt.video))
	}
}

type closeTracker struct {
	storage.Blob
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.Blob.Close()
}

type brokenResponseWriter struct {
	*httptest.ResponseRecorder
	writes int
}

func (w *brokenResponseWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 1 {
		return 0, errors.New("client went away")
	}
	return w.ResponseRecorder.Write(p)
}

func TestWriteAbortsOnDisconnectAndReleasesFile(t *testing.T) {
	f := newFixture(t)
	v := f.addVideo(t, "abort.mp4", "video/mp4", testPayload(10_000))

	resp, err := f.engine.Serve(context.Background(), v.ID, "")
	require.NoError(t, err)
	body := resp.Body.(*sectionBody)
	tracker := &closeTracker{Blob: body.blob}
	body.blob = tracker

	w := &brokenResponseWriter{ResponseRecorder: httptest.NewRecorder()}
	n, err := f.engine.Write(context.Background(), w, resp)

	assert.Error(t, err)
	assert.Equal(t, int64(1024), n)
	assert.Equal(t, 2, w.writes)
	assert.True(t, tracker.closed)
}

func TestWriteStopsWhenRequestCancelled(t *testing.T) {
	f := newFixture(t)
	v := f.addVideo(t, "cancel.mp4", "video/mp4", testPayload(4096))

	resp, err := f.engine.Serve(context.Background(), v.ID, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	n, err := f.engine.Write(ctx, rec, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestConcurrentServesOfSameFile(t *testing.T) {
	f := newFixture(t)
	payload := testPayload(20_000)
	v := f.addVideo(t, "shared.mp4", "video/mp4", payload)

	results := make(chan []byte, 8)
	for i := 0; i < 8; i++ {
		go func() {
			resp, err := f.engine.Serve(context.Background(), v.ID, "")
			if err != nil {
				results <- nil
				return
			}
			var buf bytes.Buffer
			_, _ = io.Copy(&buf, resp.Body)
			resp.Body.Close()
			results <- buf.Bytes()
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, payload, <-results)
	}
}
