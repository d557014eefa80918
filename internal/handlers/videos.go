package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ListHandler handles catalog listing
type ListHandler struct {
	lister Lister
}

// NewListHandler creates a new list handler
func NewListHandler(lister Lister) *ListHandler {
	return &ListHandler{lister: lister}
}

// ServeHTTP handles GET / and returns videos newest first
func (lh *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "list_videos",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	videos, err := lh.lister.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	span.SetAttributes(attribute.Int("video_count", len(videos)))
	writeJSON(w, http.StatusOK, videos)
}

// ThumbnailHandler serves generated thumbnails
type ThumbnailHandler struct {
	thumbnailer Thumbnailer
}

// NewThumbnailHandler creates a new thumbnail handler
func NewThumbnailHandler(thumbnailer Thumbnailer) *ThumbnailHandler {
	return &ThumbnailHandler{thumbnailer: thumbnailer}
}

// ServeHTTP handles GET /{id}/thumbnail
func (th *ThumbnailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "get_thumbnail",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("video_id", id))

	data, err := th.thumbnailer.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// DeleteHandler handles video deletion
type DeleteHandler struct {
	deleter Deleter
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(deleter Deleter) *DeleteHandler {
	return &DeleteHandler{deleter: deleter}
}

// ServeHTTP handles DELETE /{id}
func (dh *DeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "delete_video",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("video_id", id))

	if err := dh.deleter.Delete(ctx, id); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Video deleted successfully"})
}
