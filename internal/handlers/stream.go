package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StreamHandler handles video playback requests
type StreamHandler struct {
	streamer Streamer
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(streamer Streamer) *StreamHandler {
	return &StreamHandler{streamer: streamer}
}

// ServeHTTP handles GET /{id} with an optional Range header
func (sh *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "stream_video",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	id := mux.Vars(r)["id"]
	rangeHeader := r.Header.Get("Range")
	span.SetAttributes(
		attribute.String("video_id", id),
		attribute.String("range", rangeHeader),
	)

	resp, err := sh.streamer.Serve(ctx, id, rangeHeader)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}

	span.SetAttributes(attribute.Int("status", resp.Status))
	n, err := sh.streamer.Write(ctx, w, resp)
	if err != nil {
		span.RecordError(err)
		log.Printf("Streaming video %s stopped: %v", id, err)
		return
	}
	span.SetAttributes(attribute.Int64("bytes_sent", n))
}
