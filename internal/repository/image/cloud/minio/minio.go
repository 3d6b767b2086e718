package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"image-ingest/internal/apperror"

	"github.com/minio/minio-go/v7"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// objectClient is the slice of the minio client the repository uses;
// *minio.Client satisfies it.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// FileRepository writes image blobs with exponential-backoff retry and
// guarantees the target bucket exists before every attempt.
type FileRepository struct {
	client       objectClient
	bucket       string
	retries      retry.Strategy
	writeTimeout time.Duration
	logger       *zlog.Zerolog
}

func NewFileRepository(client *minio.Client, bucket string, maxAttempts int, writeTimeout time.Duration, logger *zlog.Zerolog) *FileRepository {
	return &FileRepository{
		client: client,
		bucket: bucket,
		// Doubling from 2s reproduces a 2^attempt-second schedule.
		retries: retry.Strategy{
			Attempts: maxAttempts,
			Delay:    2 * time.Second,
			Backoff:  2,
		},
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (r *FileRepository) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
		// A concurrent create is fine as long as the bucket is there now.
		if exists, checkErr := r.client.BucketExists(ctx, r.bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// SaveObject writes data under key with retried attempts. All attempts
// failing surfaces a retryable storage error with a suggested
// retry-after delay.
func (r *FileRepository) SaveObject(ctx context.Context, key string, data []byte, contentType string) error {
	attempt := 0
	err := retry.DoContext(ctx, r.retries, func() error {
		attempt++
		if err := r.putOnce(ctx, key, data, contentType); err != nil {
			r.logger.Warn().
				Err(err).
				Str("key", key).
				Int("attempt", attempt).
				Msg("Storage write failed")
			return err
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return apperror.Timeout("storage write cancelled", err)
		}
		return apperror.Storage(
			fmt.Sprintf("failed to store object after %d attempts", r.retries.Attempts),
			err,
			time.Duration(1<<r.retries.Attempts)*time.Second,
		)
	}
	return nil
}

func (r *FileRepository) putOnce(ctx context.Context, key string, data []byte, contentType string) error {
	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.ensureBucket(writeCtx); err != nil {
		return err
	}

	_, err := r.client.PutObject(writeCtx, r.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (r *FileRepository) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

func (r *FileRepository) DeleteObject(ctx context.Context, key string) error {
	if err := r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}
