package upload

import (
	"context"
	"io"

	"image-ingest/internal/domain"
	"image-ingest/internal/resource"
	"image-ingest/internal/usecase/processor"
)

type imageRepository interface {
	SaveImage(ctx context.Context, record *domain.ImageRecord) error
	SaveVariant(ctx context.Context, variant *domain.VariantRecord) error
	GetImageByID(ctx context.Context, id string) (*domain.ImageRecord, error)
	GetVariant(ctx context.Context, imageID string, kind domain.VariantKind) (*domain.VariantRecord, error)
	ListVariants(ctx context.Context, imageID string) ([]domain.VariantRecord, error)
	DeleteImage(ctx context.Context, id string) error
	TrackUsage(ctx context.Context, id string) error
}

type fileRepository interface {
	SaveObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error
}

type eventProducer interface {
	Publish(ctx context.Context, event domain.IngestEvent) error
}

type processingEngine interface {
	Process(ctx context.Context, data []byte, filename string, format domain.ImageFormat) (*domain.ProcessingResult, error)
}

type variantEngine interface {
	Generate(ctx context.Context, original []byte) ([]processor.GeneratedVariant, []error)
}

type resourceMonitor interface {
	Sample() resource.Stats
	Cleanup(ctx context.Context)
}
