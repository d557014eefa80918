package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort       string
	ServiceName       string
	CORSAllowedOrigin string

	// Media configuration
	UploadDir        string
	MaxUploadMB      int
	StreamChunkKB    int
	FFmpegPath       string
	ThumbnailWidth   int
	ThumbnailOffset  time.Duration
	ThumbnailTimeout time.Duration

	// Catalog configuration
	CatalogDriver string
	SQLitePath    string

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// Redis configuration
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Blob backend configuration
	BlobBackend     string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// Jaeger configuration
	TracingEnabled     bool
	TracingSampleRatio float64
	JaegerEndpoint     string
}

// LoadConfig loads configuration from an optional .env file and environment
// variables, with sensible defaults. Variables already set in the
// environment win over the .env file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	uploadDir := getEnv("UPLOAD_DIR", "uploads")

	config := &Config{
		// Service defaults
		ServicePort:       getEnv("SERVICE_PORT", "3011"),
		ServiceName:       getEnv("SERVICE_NAME", "vidvault-service"),
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),

		// Media defaults
		UploadDir:        uploadDir,
		MaxUploadMB:      getEnvAsInt("MAX_UPLOAD_MB", 100),
		StreamChunkKB:    getEnvAsInt("STREAM_CHUNK_KB", 64),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		ThumbnailWidth:   getEnvAsInt("THUMBNAIL_WIDTH", 320),
		ThumbnailOffset:  getEnvAsDuration("THUMBNAIL_OFFSET", time.Second),
		ThumbnailTimeout: getEnvAsDuration("THUMBNAIL_TIMEOUT", 30*time.Second),

		// Catalog defaults
		CatalogDriver: getEnv("CATALOG_DRIVER", "sqlite"),
		SQLitePath:    getEnv("SQLITE_PATH", filepath.Join(uploadDir, "catalog.db")),

		// TiDB defaults
		TiDBHost:     getEnv("TIDB_HOST", "localhost"),
		TiDBPort:     getEnv("TIDB_PORT", "4000"),
		TiDBUser:     getEnv("TIDB_USER", "root"),
		TiDBPassword: getEnv("TIDB_PASSWORD", ""),
		TiDBDatabase: getEnv("TIDB_DATABASE", "vidvault"),

		// Redis defaults
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Blob backend defaults
		BlobBackend:     getEnv("BLOB_BACKEND", "fs"),
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "vidvault"),
		MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),

		// Jaeger defaults
		TracingEnabled:     getEnvAsBool("TRACING_ENABLED", false),
		TracingSampleRatio: getEnvAsFloat("TRACING_SAMPLE_RATIO", 1),
		JaegerEndpoint:     getEnv("JAEGER_ENDPOINT", "localhost:4318"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.CatalogDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("invalid CATALOG_DRIVER %q: want sqlite or mysql", c.CatalogDriver)
	}
	switch c.BlobBackend {
	case "fs", "minio":
	default:
		return fmt.Errorf("invalid BLOB_BACKEND %q: want fs or minio", c.BlobBackend)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.ThumbnailWidth <= 0 {
		return fmt.Errorf("THUMBNAIL_WIDTH must be positive, got %d", c.ThumbnailWidth)
	}
	return nil
}

// GetDSN returns the catalog connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.CatalogDriver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// GetMaxUploadBytes returns the upload size bound in bytes
func (c *Config) GetMaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// GetStreamChunkBytes returns the streaming chunk size in bytes
func (c *Config) GetStreamChunkBytes() int64 {
	return int64(c.StreamChunkKB) * 1024
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
