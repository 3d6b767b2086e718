package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"image-ingest/internal/domain"
	"image-ingest/internal/resource"

	"github.com/wb-go/wbf/zlog"
)

type VariantPriority int

const (
	VariantPriorityHigh VariantPriority = iota
	VariantPriorityMedium
)

type VariantSpec struct {
	Kind      domain.VariantKind
	MaxWidth  int
	MaxHeight int
	Quality   int
	Format    domain.ImageFormat
	Priority  VariantPriority
}

func DefaultVariantSpecs() []VariantSpec {
	return []VariantSpec{
		{Kind: domain.VariantThumbnail, MaxWidth: 300, MaxHeight: 300, Quality: 70, Format: domain.FormatJPEG, Priority: VariantPriorityHigh},
		{Kind: domain.VariantSmall, MaxWidth: 800, MaxHeight: 600, Quality: 75, Format: domain.FormatJPEG, Priority: VariantPriorityHigh},
		{Kind: domain.VariantMedium, MaxWidth: 1200, MaxHeight: 900, Quality: 80, Format: domain.FormatJPEG, Priority: VariantPriorityMedium},
	}
}

type GeneratedVariant struct {
	Spec     VariantSpec
	Data     []byte
	Width    int
	Height   int
	MimeType string
}

// VariantGenerator derives the configured renditions from a processed
// original. One variant failing never aborts its siblings: callers get
// whatever succeeded plus the per-variant errors.
type VariantGenerator struct {
	specs   []VariantSpec
	monitor resourceMonitor
	logger  *zlog.Zerolog
}

const variantPressurePause = 200 * time.Millisecond

func NewVariantGenerator(specs []VariantSpec, monitor resourceMonitor, logger *zlog.Zerolog) *VariantGenerator {
	return &VariantGenerator{
		specs:   specs,
		monitor: monitor,
		logger:  logger,
	}
}

func (g *VariantGenerator) Generate(ctx context.Context, original []byte) ([]GeneratedVariant, []error) {
	img, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, []error{fmt.Errorf("failed to decode processed original: %w", err)}
	}

	var generated []GeneratedVariant
	var failures []error

	for _, spec := range g.specs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Errorf("variant %s: %w", spec.Kind, err))
			continue
		}

		level := resource.Classify(g.monitor.Sample())
		if level >= resource.PressureElevated && spec.Priority == VariantPriorityMedium {
			g.logger.Warn().
				Str("variant", string(spec.Kind)).
				Str("pressure", level.String()).
				Msg("Skipping medium-priority variant under memory pressure")
			failures = append(failures, fmt.Errorf("variant %s skipped under %s memory pressure", spec.Kind, level))
			continue
		}
		if level >= resource.PressureCritical {
			// Only one rendition in flight and a breather between them.
			if err := sleepCtx(ctx, variantPressurePause); err != nil {
				failures = append(failures, fmt.Errorf("variant %s: %w", spec.Kind, err))
				continue
			}
		}

		variant, err := renderVariant(img, spec)
		if err != nil {
			g.logger.Error().
				Err(err).
				Str("variant", string(spec.Kind)).
				Msg("Variant generation failed")
			failures = append(failures, fmt.Errorf("variant %s: %w", spec.Kind, err))
			continue
		}

		generated = append(generated, variant)
		g.logger.Debug().
			Str("variant", string(spec.Kind)).
			Int("width", variant.Width).
			Int("height", variant.Height).
			Int("size", len(variant.Data)).
			Msg("Variant generated")
	}

	return generated, failures
}

func renderVariant(img image.Image, spec VariantSpec) (GeneratedVariant, error) {
	scaled := scaleToBox(img, spec.MaxWidth, spec.MaxHeight)

	data, err := encodeFormat(scaled, spec.Format, spec.Quality)
	if err != nil {
		return GeneratedVariant{}, err
	}

	bounds := scaled.Bounds()
	return GeneratedVariant{
		Spec:     spec,
		Data:     data,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		MimeType: spec.Format.ContentType(),
	}, nil
}
