package upload

import (
	"context"
	"io"

	"image-ingest/internal/domain"
)

type uploadUsecase interface {
	UploadBase64(ctx context.Context, filename, fileType, contentB64 string, meta domain.UploadMetadata) (*domain.UploadResult, error)
	UploadChunk(ctx context.Context, sessionID string, index, total int, chunkB64, filename, fileType string) (*domain.ChunkAck, error)
	BulkUpload(ctx context.Context, items []domain.BulkItem) (*domain.BulkResult, error)
	GetImage(ctx context.Context, id, variant string) (*domain.ImageRecord, io.ReadCloser, string, error)
	DeleteImage(ctx context.Context, id string) error
}
