package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maneesh/vidvault/internal/chunker"
	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vidvault-delivery")

// ErrFileMissing means the catalog has a record whose blob is gone
var ErrFileMissing = errors.New("video file not found")

const defaultContentType = "application/octet-stream"

var extensionToMime = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".ogv":  "video/ogg",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".m4v":  "video/x-m4v",
}

// ContentType prefers the declared MIME type, then the storage name's
// extension, then a generic binary type.
func ContentType(video *models.Video) string {
	if mt := strings.TrimSpace(video.MimeType); mt != "" {
		return mt
	}
	if mt, ok := extensionToMime[strings.ToLower(filepath.Ext(video.StorageName))]; ok {
		return mt
	}
	return defaultContentType
}

// Response is a ready-to-send streaming response. Body is nil for 416.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

type sectionBody struct {
	*io.SectionReader
	blob storage.Blob
}

func (b *sectionBody) Close() error {
	return b.blob.Close()
}

// Engine serves stored videos with byte-range support
type Engine struct {
	catalog storage.Catalog
	blobs   storage.BlobStore
	chunker *chunker.Chunker
}

// NewEngine creates a delivery engine that streams in chunker-sized pieces
func NewEngine(catalog storage.Catalog, blobs storage.BlobStore, c *chunker.Chunker) *Engine {
	return &Engine{
		catalog: catalog,
		blobs:   blobs,
		chunker: c,
	}
}

// Serve resolves id and prepares a full (200), partial (206) or
// unsatisfiable (416) response. The caller must close a non-nil Body.
func (e *Engine) Serve(ctx context.Context, id, rangeHeader string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "serve_video",
		trace.WithAttributes(
			attribute.String("video_id", id),
			attribute.String("range", rangeHeader),
		),
	)
	defer span.End()

	video, err := e.catalog.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	blob, err := e.blobs.Open(ctx, video.StorageName)
	if errors.Is(err, storage.ErrBlobNotFound) {
		log.Printf("Consistency violation: video %s has no file %s", id, video.StorageName)
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, id)
	} else if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// The live file is authoritative over the recorded size
	fileSize := blob.Size()
	span.SetAttributes(attribute.Int64("file_size", fileSize))

	header := http.Header{}
	header.Set("Content-Type", ContentType(video))
	header.Set("Accept-Ranges", "bytes")

	if rangeHeader == "" {
		header.Set("Content-Length", strconv.FormatInt(fileSize, 10))
		return &Response{
			Status: http.StatusOK,
			Header: header,
			Body:   &sectionBody{SectionReader: io.NewSectionReader(blob, 0, fileSize), blob: blob},
		}, nil
	}

	start, end, err := ParseRange(rangeHeader, fileSize)
	if err != nil {
		blob.Close()
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		header.Set("Content-Length", "0")
		span.SetAttributes(attribute.Bool("range_satisfiable", false))
		return &Response{
			Status: http.StatusRequestedRangeNotSatisfiable,
			Header: header,
		}, nil
	}

	length := end - start + 1
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	header.Set("Content-Length", strconv.FormatInt(length, 10))
	span.SetAttributes(
		attribute.Int64("range_start", start),
		attribute.Int64("range_end", end),
	)

	return &Response{
		Status: http.StatusPartialContent,
		Header: header,
		Body:   &sectionBody{SectionReader: io.NewSectionReader(blob, start, length), blob: blob},
	}, nil
}

// Write sends resp to w chunk by chunk and closes its body. A failed write,
// failed read or cancelled ctx aborts the transfer; it is not retried.
func (e *Engine) Write(ctx context.Context, w http.ResponseWriter, resp *Response) (int64, error) {
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.Status)

	if resp.Body == nil {
		return 0, nil
	}
	defer resp.Body.Close()

	n, err := e.chunker.Copy(ctx, w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("transfer aborted after %d bytes: %w", n, err)
	}
	return n, nil
}
