package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// BasePath is where the video API is mounted
const BasePath = "/api/vid"

// Services bundles what the HTTP surface needs
type Services struct {
	Ingester    Ingester
	Lister      Lister
	Streamer    Streamer
	Thumbnailer Thumbnailer
	Deleter     Deleter
}

// NewRouter wires every route and wraps the result in the CORS policy
func NewRouter(svc Services, allowedOrigin string) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix(BasePath).Subrouter()
	api.Handle("", otelhttp.NewHandler(NewListHandler(svc.Lister), "GET "+BasePath)).Methods(http.MethodGet)
	api.Handle("/", otelhttp.NewHandler(NewListHandler(svc.Lister), "GET "+BasePath)).Methods(http.MethodGet)
	api.Handle("/upload", otelhttp.NewHandler(NewUploadHandler(svc.Ingester), "POST "+BasePath+"/upload")).Methods(http.MethodPost)
	api.Handle("/{id}", otelhttp.NewHandler(NewStreamHandler(svc.Streamer), "GET "+BasePath+"/{id}")).Methods(http.MethodGet)
	api.Handle("/{id}/thumbnail", otelhttp.NewHandler(NewThumbnailHandler(svc.Thumbnailer), "GET "+BasePath+"/{id}/thumbnail")).Methods(http.MethodGet)
	api.Handle("/{id}", otelhttp.NewHandler(NewDeleteHandler(svc.Deleter), "DELETE "+BasePath+"/{id}")).Methods(http.MethodDelete)

	return withCORS(router, allowedOrigin)
}

func withCORS(next http.Handler, allowedOrigin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Range")
		h.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
