package minio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"image-ingest/internal/apperror"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type fakeObjectClient struct {
	putErrs      []error
	putCalls     int
	bucketExists bool
	makeCalls    int
	removed      []string
	removeErr    error
}

func (c *fakeObjectClient) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	call := c.putCalls
	c.putCalls++
	if call < len(c.putErrs) && c.putErrs[call] != nil {
		return minio.UploadInfo{}, c.putErrs[call]
	}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (c *fakeObjectClient) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("object not found")
}

func (c *fakeObjectClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removed = append(c.removed, key)
	return nil
}

func (c *fakeObjectClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return c.bucketExists, nil
}

func (c *fakeObjectClient) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	c.makeCalls++
	c.bucketExists = true
	return nil
}

func newTestRepository(client *fakeObjectClient, maxAttempts int) *FileRepository {
	zlog.Init()
	return &FileRepository{
		client: client,
		bucket: "images",
		retries: retry.Strategy{
			Attempts: maxAttempts,
			Delay:    time.Millisecond,
			Backoff:  2,
		},
		writeTimeout: time.Second,
		logger:       &zlog.Logger,
	}
}

func TestNewFileRepositoryBackoffSchedule(t *testing.T) {
	zlog.Init()
	repo := NewFileRepository(nil, "images", 3, time.Second, &zlog.Logger)

	// 2s doubling to 4s between three attempts.
	assert.Equal(t, retry.Strategy{Attempts: 3, Delay: 2 * time.Second, Backoff: 2}, repo.retries)
}

func TestSaveObjectRetriesUntilSuccess(t *testing.T) {
	client := &fakeObjectClient{
		bucketExists: true,
		putErrs:      []error{errors.New("connection reset"), errors.New("connection reset")},
	}
	repo := newTestRepository(client, 3)

	err := repo.SaveObject(context.Background(), "images/a/original.jpg", []byte("blob"), "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, 3, client.putCalls)
}

func TestSaveObjectExhaustedIsRetryableStorageError(t *testing.T) {
	cause := errors.New("connection reset")
	client := &fakeObjectClient{
		bucketExists: true,
		putErrs:      []error{cause, cause, cause},
	}
	repo := newTestRepository(client, 3)

	err := repo.SaveObject(context.Background(), "images/a/original.jpg", []byte("blob"), "image/jpeg")

	require.Error(t, err)
	assert.Equal(t, 3, client.putCalls)
	assert.Equal(t, apperror.CategoryStorage, apperror.CategoryOf(err))
	assert.True(t, apperror.IsRetryable(err))
	assert.Equal(t, 8*time.Second, apperror.RetryAfter(err))
	assert.ErrorIs(t, err, cause)
}

func TestSaveObjectCreatesMissingBucketOnce(t *testing.T) {
	client := &fakeObjectClient{bucketExists: false}
	repo := newTestRepository(client, 3)

	require.NoError(t, repo.SaveObject(context.Background(), "images/a/original.jpg", []byte("blob"), "image/jpeg"))
	require.NoError(t, repo.SaveObject(context.Background(), "images/b/original.jpg", []byte("blob"), "image/jpeg"))

	assert.Equal(t, 1, client.makeCalls)
	assert.Equal(t, 2, client.putCalls)
}

func TestDeleteObject(t *testing.T) {
	client := &fakeObjectClient{bucketExists: true}
	repo := newTestRepository(client, 3)

	require.NoError(t, repo.DeleteObject(context.Background(), "images/a/original.jpg"))
	assert.Equal(t, []string{"images/a/original.jpg"}, client.removed)

	client.removeErr = errors.New("backend down")
	err := repo.DeleteObject(context.Background(), "images/b/original.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove object")
}
