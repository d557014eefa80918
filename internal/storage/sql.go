package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/maneesh/vidvault/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

// Supported catalog drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var schemas = map[string][]string{
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS videos (
			seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			id VARCHAR(36) NOT NULL UNIQUE,
			storage_name VARCHAR(255) NOT NULL,
			original_name VARCHAR(1024) NOT NULL,
			mime_type VARCHAR(255) NOT NULL,
			size_bytes BIGINT NOT NULL,
			upload_date BIGINT NOT NULL,
			INDEX idx_videos_upload_date (upload_date)
		)`,
	},
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS videos (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			storage_name TEXT NOT NULL,
			original_name TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			upload_date INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_upload_date ON videos (upload_date)`,
	},
}

// SQLCatalog stores video records in TiDB/MySQL or SQLite.
// upload_date is kept as Unix nanoseconds and seq records creation order,
// which breaks ties between equal upload dates.
type SQLCatalog struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewSQLCatalog opens the database and makes sure the videos table exists
func NewSQLCatalog(driver, dsn string) (*SQLCatalog, error) {
	stmts, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported catalog driver: %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLCatalog{db: db, driver: driver, now: time.Now}, nil
}

// Close closes the database connection
func (c *SQLCatalog) Close() error {
	return c.db.Close()
}

// Create inserts a new video record with a fresh id and upload date
func (c *SQLCatalog) Create(ctx context.Context, v models.NewVideo) (*models.Video, error) {
	video := &models.Video{
		ID:           uuid.NewString(),
		StorageName:  v.StorageName,
		OriginalName: v.OriginalName,
		MimeType:     v.MimeType,
		SizeBytes:    v.SizeBytes,
		UploadDate:   time.Unix(0, c.now().UnixNano()).UTC(),
	}

	ctx, span := tracer.Start(ctx, "catalog.create",
		trace.WithAttributes(
			attribute.String("video_id", video.ID),
			attribute.String("storage_name", video.StorageName),
			attribute.Int64("size_bytes", video.SizeBytes),
		),
	)
	defer span.End()

	query := `INSERT INTO videos (id, storage_name, original_name, mime_type, size_bytes, upload_date)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query,
		video.ID,
		video.StorageName,
		video.OriginalName,
		video.MimeType,
		video.SizeBytes,
		video.UploadDate.UnixNano(),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return video, nil
}

// ListAll returns every record, newest upload first
func (c *SQLCatalog) ListAll(ctx context.Context) ([]*models.Video, error) {
	ctx, span := tracer.Start(ctx, "catalog.list_all")
	defer span.End()

	query := `SELECT id, storage_name, original_name, mime_type, size_bytes, upload_date
			  FROM videos
			  ORDER BY upload_date DESC, seq DESC`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := []*models.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	span.SetAttributes(attribute.Int("video_count", len(videos)))
	return videos, nil
}

// GetByID retrieves a video record or ErrNotFound
func (c *SQLCatalog) GetByID(ctx context.Context, id string) (*models.Video, error) {
	ctx, span := tracer.Start(ctx, "catalog.get_by_id",
		trace.WithAttributes(
			attribute.String("video_id", id),
		),
	)
	defer span.End()

	query := `SELECT id, storage_name, original_name, mime_type, size_bytes, upload_date
			  FROM videos WHERE id = ?`

	video, err := scanVideo(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query video: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return video, nil
}

// DeleteByID removes a video record or returns ErrNotFound
func (c *SQLCatalog) DeleteByID(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "catalog.delete_by_id",
		trace.WithAttributes(
			attribute.String("video_id", id),
		),
	)
	defer span.End()

	res, err := c.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete video: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		span.SetAttributes(attribute.Bool("found", false))
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	span.SetAttributes(attribute.Bool("delete_success", true))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var video models.Video
	var uploadDate int64
	err := row.Scan(
		&video.ID,
		&video.StorageName,
		&video.OriginalName,
		&video.MimeType,
		&video.SizeBytes,
		&uploadDate,
	)
	if err != nil {
		return nil, err
	}
	video.UploadDate = time.Unix(0, uploadDate).UTC()
	return &video, nil
}
