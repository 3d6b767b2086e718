package processor

import (
	"context"
	"sort"

	"image-ingest/internal/domain"
)

type ProcessFunc func(ctx context.Context, data []byte, filename string) (*domain.ProcessingResult, error)

// Strategy is an immutable descriptor for one way of turning raw upload
// bytes into a web-safe asset. Lower priority runs first.
type Strategy struct {
	Name             string
	Priority         int
	MemoryRequiredMB uint64
	MaxFileSize      int64
	Formats          []domain.ImageFormat
	Process          ProcessFunc
}

const (
	StrategyHighQuality       = "high-quality"
	StrategyMemoryEfficient   = "memory-efficient"
	StrategyFormatConverter   = "format-converter"
	StrategyEmergencyFallback = "emergency-fallback"
)

// Accepts reports whether the strategy handles the given source format.
// An empty format set is a wildcard.
func (s Strategy) Accepts(format domain.ImageFormat) bool {
	if len(s.Formats) == 0 {
		return true
	}
	for _, f := range s.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// DefaultCatalog returns the four processing tiers, most capable first.
// Each tier accepts progressively worse inputs and produces progressively
// more aggressive output.
func DefaultCatalog() []Strategy {
	catalog := []Strategy{
		{
			Name:             StrategyHighQuality,
			Priority:         1,
			MemoryRequiredMB: 512,
			MaxFileSize:      25 << 20,
			Formats:          []domain.ImageFormat{domain.FormatJPEG, domain.FormatPNG, domain.FormatWebP},
			Process: renderFunc(renderSpec{
				MaxEdge:          2048,
				Quality:          85,
				PreservePNGAlpha: true,
			}),
		},
		{
			Name:             StrategyMemoryEfficient,
			Priority:         2,
			MemoryRequiredMB: 256,
			MaxFileSize:      50 << 20,
			Formats: []domain.ImageFormat{
				domain.FormatJPEG, domain.FormatPNG, domain.FormatWebP,
				domain.FormatGIF, domain.FormatBMP, domain.FormatTIFF,
			},
			Process: renderFunc(renderSpec{
				MaxEdge: 1024,
				Quality: 75,
			}),
		},
		{
			Name:             StrategyFormatConverter,
			Priority:         3,
			MemoryRequiredMB: 384,
			MaxFileSize:      100 << 20,
			Formats: []domain.ImageFormat{
				domain.FormatHEIC, domain.FormatHEIF, domain.FormatTIFF,
				domain.FormatBMP, domain.FormatSVG, domain.FormatAVIF,
			},
			Process: renderFunc(renderSpec{
				MaxEdge: 1600,
				Quality: 80,
			}),
		},
		{
			Name:             StrategyEmergencyFallback,
			Priority:         4,
			MemoryRequiredMB: 128,
			MaxFileSize:      domain.MaxUploadSize,
			Formats:          nil,
			Process: renderFunc(renderSpec{
				MaxEdge: 800,
				Quality: 60,
			}),
		},
	}

	sort.Slice(catalog, func(i, j int) bool {
		return catalog[i].Priority < catalog[j].Priority
	})
	return catalog
}
