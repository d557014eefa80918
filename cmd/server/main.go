package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maneesh/vidvault/internal/chunker"
	"github.com/maneesh/vidvault/internal/config"
	"github.com/maneesh/vidvault/internal/deletion"
	"github.com/maneesh/vidvault/internal/delivery"
	"github.com/maneesh/vidvault/internal/handlers"
	"github.com/maneesh/vidvault/internal/ingest"
	"github.com/maneesh/vidvault/internal/storage"
	"github.com/maneesh/vidvault/internal/thumbnail"
	"github.com/maneesh/vidvault/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	log.Println("Starting vidvault service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s", cfg.ServiceName, cfg.ServicePort)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(tracing.Options{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize blob store
	var blobs storage.BlobStore
	switch cfg.BlobBackend {
	case "minio":
		log.Println("Connecting to MinIO...")
		blobs, err = storage.NewMinioBlobStore(
			cfg.MinIOEndpoint,
			cfg.MinIOAccessKey,
			cfg.MinIOSecretKey,
			cfg.MinIOBucketName,
			cfg.MinIOUseSSL,
		)
	default:
		blobs, err = storage.NewFSBlobStore(cfg.UploadDir)
	}
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	log.Printf("Blob store initialized (%s)", cfg.BlobBackend)

	// Initialize catalog
	if cfg.CatalogDriver == storage.DriverSQLite {
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			log.Fatalf("Failed to create upload directory: %v", err)
		}
	}
	log.Printf("Connecting to %s catalog...", cfg.CatalogDriver)
	sqlCatalog, err := storage.NewSQLCatalog(cfg.CatalogDriver, cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to initialize catalog: %v", err)
	}
	defer sqlCatalog.Close()
	log.Println("Catalog initialized")

	var catalog storage.Catalog = sqlCatalog
	if cfg.RedisEnabled {
		log.Println("Connecting to Redis...")
		redisCache, err := storage.NewRedisCache(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to initialize Redis client: %v", err)
		}
		defer redisCache.Close()
		catalog = storage.NewCachedCatalog(sqlCatalog, redisCache)
		log.Println("Redis cache initialized")
	}

	// Initialize media components
	streamChunker := chunker.NewChunker(cfg.GetStreamChunkBytes())
	extractor := thumbnail.NewFFmpegExtractor(cfg.FFmpegPath, cfg.ThumbnailWidth, cfg.ThumbnailOffset)

	router := handlers.NewRouter(handlers.Services{
		Ingester:    ingest.NewPipeline(blobs, catalog, cfg.GetMaxUploadBytes()),
		Lister:      catalog,
		Streamer:    delivery.NewEngine(catalog, blobs, streamChunker),
		Thumbnailer: thumbnail.NewOrchestrator(catalog, blobs, extractor, cfg.ThumbnailTimeout, ""),
		Deleter:     deletion.NewCoordinator(catalog, blobs),
	}, cfg.CORSAllowedOrigin)

	// Create HTTP server. No WriteTimeout so long streams run to completion.
	srv := &http.Server{
		Addr:              ":" + cfg.ServicePort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
