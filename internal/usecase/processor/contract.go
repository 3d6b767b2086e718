package processor

import (
	"context"

	"image-ingest/internal/resource"
)

type resourceMonitor interface {
	Sample() resource.Stats
	Cleanup(ctx context.Context)
}
