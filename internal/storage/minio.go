package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// minioPartSize bounds memory used per streaming upload of unknown length
	minioPartSize = 16 * 1024 * 1024

	// presignExpiry is how long a Locate URL stays valid for the frame extractor
	presignExpiry = 15 * time.Minute
)

// MinioBlobStore keeps blobs as objects in a MinIO bucket
type MinioBlobStore struct {
	client     *minio.Client
	bucketName string
}

var _ BlobStore = (*MinioBlobStore)(nil)

// NewMinioBlobStore initializes a new MinIO client
func NewMinioBlobStore(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioBlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ms := &MinioBlobStore{
		client:     client,
		bucketName: bucketName,
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Printf("Creating bucket: %s", bucketName)
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("Bucket %s created successfully", bucketName)
	}

	return ms, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Put uploads r as a single object. A failed multipart upload is aborted
// by the client, so nothing becomes visible at key.
func (ms *MinioBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	ctx, span := tracer.Start(ctx, "minio.put",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	info, err := ms.client.PutObject(ctx, ms.bucketName, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		PartSize:    minioPartSize,
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	span.SetAttributes(
		attribute.Int64("size_bytes", info.Size),
		attribute.Bool("upload_success", true),
	)
	return info.Size, nil
}

type minioBlob struct {
	*minio.Object
	size int64
}

func (b *minioBlob) Size() int64 { return b.size }

// Open returns a lazily-fetched object handle supporting ranged reads
func (ms *MinioBlobStore) Open(ctx context.Context, key string) (Blob, error) {
	ctx, span := tracer.Start(ctx, "minio.open",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	object, err := ms.client.GetObject(ctx, ms.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	st, err := object.Stat()
	if err != nil {
		object.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	span.SetAttributes(attribute.Int64("size_bytes", st.Size))
	return &minioBlob{Object: object, size: st.Size}, nil
}

// Stat returns the object's size
func (ms *MinioBlobStore) Stat(ctx context.Context, key string) (int64, error) {
	st, err := ms.client.StatObject(ctx, ms.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return 0, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return 0, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return st.Size, nil
}

// Remove deletes an object; removing a missing object succeeds
func (ms *MinioBlobStore) Remove(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "minio.remove",
		trace.WithAttributes(
			attribute.String("object_key", key),
		),
	)
	defer span.End()

	err := ms.client.RemoveObject(ctx, ms.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		span.RecordError(err)
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}

	return nil
}

// Locate returns a presigned GET URL so ffmpeg can read the object over HTTP
func (ms *MinioBlobStore) Locate(ctx context.Context, key string) (string, error) {
	if _, err := ms.Stat(ctx, key); err != nil {
		return "", err
	}
	u, err := ms.client.PresignedGetObject(ctx, ms.bucketName, key, presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return u.String(), nil
}
