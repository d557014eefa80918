package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/maneesh/vidvault/internal/ingest"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// multipartSlack covers boundaries and part headers on top of the file bound
const multipartSlack = 1 << 20

// UploadFieldName is the multipart field carrying the video
const UploadFieldName = "video"

// UploadHandler handles video upload requests
type UploadHandler struct {
	ingester Ingester
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(ingester Ingester) *UploadHandler {
	return &UploadHandler{ingester: ingester}
}

// ServeHTTP handles POST /upload. The multipart body is read as a stream;
// the video part is handed to the ingester without buffering it first.
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "upload_video",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, uh.ingester.MaxBytes()+multipartSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", ingest.ErrNoFilePart, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeError(w, ingest.ErrNoFilePart)
			return
		} else if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, ingest.ErrSizeLimitExceeded)
				return
			}
			writeError(w, fmt.Errorf("%w: %v", ingest.ErrNoFilePart, err))
			return
		}

		if part.FormName() != UploadFieldName || part.FileName() == "" {
			part.Close()
			continue
		}

		span.SetAttributes(attribute.String("file_name", part.FileName()))
		log.Printf("Uploading file: %s", part.FileName())

		video, err := uh.ingester.Ingest(ctx, part, part.FileName(), part.Header.Get("Content-Type"))
		part.Close()
		if err != nil {
			span.RecordError(err)
			writeError(w, err)
			return
		}

		span.SetAttributes(attribute.String("video_id", video.ID))
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Video uploaded", Video: video})
		return
	}
}
