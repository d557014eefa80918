package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "")
	t.Setenv("CATALOG_DRIVER", "")
	t.Setenv("BLOB_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3011", cfg.ServicePort)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, "sqlite", cfg.CatalogDriver)
	assert.Equal(t, "fs", cfg.BlobBackend)
	assert.Equal(t, int64(100<<20), cfg.GetMaxUploadBytes())
	assert.Equal(t, int64(64<<10), cfg.GetStreamChunkBytes())
	assert.Equal(t, time.Second, cfg.ThumbnailOffset)
	assert.Equal(t, 30*time.Second, cfg.ThumbnailTimeout)
	assert.Equal(t, "uploads/catalog.db", cfg.GetDSN())
	assert.False(t, cfg.RedisEnabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVICE_PORT", "8080")
	t.Setenv("UPLOAD_DIR", "/data/videos")
	t.Setenv("MAX_UPLOAD_MB", "500")
	t.Setenv("THUMBNAIL_TIMEOUT", "2m")
	t.Setenv("THUMBNAIL_OFFSET", "not-a-duration")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CATALOG_DRIVER", "mysql")
	t.Setenv("TIDB_USER", "app")
	t.Setenv("TIDB_PASSWORD", "secret")
	t.Setenv("TIDB_HOST", "db")
	t.Setenv("TIDB_PORT", "4000")
	t.Setenv("TIDB_DATABASE", "videos")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, "/data/videos/catalog.db", cfg.SQLitePath)
	assert.Equal(t, int64(500<<20), cfg.GetMaxUploadBytes())
	assert.Equal(t, 2*time.Minute, cfg.ThumbnailTimeout)
	assert.Equal(t, time.Second, cfg.ThumbnailOffset)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "cache:6379", cfg.GetRedisAddr())
	assert.Equal(t, "app:secret@tcp(db:4000)/videos?charset=utf8mb4&parseTime=True&loc=Local", cfg.GetDSN())
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	tests := map[string][2]string{
		"unknown driver":  {"CATALOG_DRIVER", "postgres"},
		"unknown backend": {"BLOB_BACKEND", "s3"},
		"zero upload":     {"MAX_UPLOAD_MB", "0"},
		"negative width":  {"THUMBNAIL_WIDTH", "-10"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
