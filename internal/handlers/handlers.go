package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/maneesh/vidvault/internal/delivery"
	"github.com/maneesh/vidvault/internal/ingest"
	"github.com/maneesh/vidvault/internal/models"
	"github.com/maneesh/vidvault/internal/storage"
	"github.com/maneesh/vidvault/internal/thumbnail"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("vidvault-handlers")

// Ingester stores an uploaded video
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader, filename, mimeType string) (*models.Video, error)
	MaxBytes() int64
}

// Lister lists catalog records
type Lister interface {
	ListAll(ctx context.Context) ([]*models.Video, error)
}

// Streamer prepares and writes range responses
type Streamer interface {
	Serve(ctx context.Context, id, rangeHeader string) (*delivery.Response, error)
	Write(ctx context.Context, w http.ResponseWriter, resp *delivery.Response) (int64, error)
}

// Thumbnailer returns JPEG thumbnails
type Thumbnailer interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// Deleter removes a video and its derived state
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the JSON body of upload and delete confirmations
type MessageResponse struct {
	Message string        `json:"message"`
	Video   *models.Video `json:"video,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

// writeError translates a component error into a status and JSON message
func writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, delivery.ErrFileMissing):
		status, msg = http.StatusNotFound, "Video file not found"
	case errors.Is(err, storage.ErrNotFound):
		status, msg = http.StatusNotFound, "Video not found"
	case errors.Is(err, ingest.ErrNoFilePart):
		status, msg = http.StatusBadRequest, "No file uploaded!"
	case errors.Is(err, ingest.ErrUnsupportedType):
		status, msg = http.StatusBadRequest, "Only video files are allowed"
	case errors.Is(err, ingest.ErrSizeLimitExceeded):
		status, msg = http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, ingest.ErrStorageWriteFailed):
		status, msg = http.StatusInternalServerError, "Failed to store video"
	case errors.Is(err, thumbnail.ErrGenerationFailed):
		status, msg = http.StatusInternalServerError, "Failed to generate thumbnail"
	}

	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}
