package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"time"

	"image-ingest/internal/domain"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// renderSpec is the per-call processing configuration a strategy binds
// at catalog construction. Nothing here mutates process-wide state.
type renderSpec struct {
	MaxEdge int
	Quality int
	// PreservePNGAlpha keeps PNG output for images with transparency;
	// everything else is encoded as JPEG.
	PreservePNGAlpha bool
}

func renderFunc(spec renderSpec) ProcessFunc {
	return func(ctx context.Context, data []byte, filename string) (*domain.ProcessingResult, error) {
		start := time.Now()

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, sourceFormat, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bounds := img.Bounds()
		var warnings []string
		if longestEdge(bounds) > spec.MaxEdge {
			img = scaleToFit(img, spec.MaxEdge)
			bounds = img.Bounds()
		}

		outFormat := domain.FormatJPEG
		if spec.PreservePNGAlpha && hasAlpha(img) {
			outFormat = domain.FormatPNG
		}

		var buf bytes.Buffer
		switch outFormat {
		case domain.FormatPNG:
			err = png.Encode(&buf, img)
		default:
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: spec.Quality})
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}

		if normalizeFormatName(sourceFormat) != outFormat {
			warnings = append(warnings, fmt.Sprintf("converted from %s to %s", sourceFormat, outFormat))
		}

		result := &domain.ProcessingResult{
			Data:          buf.Bytes(),
			MimeType:      outFormat.ContentType(),
			Extension:     outFormat.Extension(),
			Format:        outFormat,
			Width:         bounds.Dx(),
			Height:        bounds.Dy(),
			OriginalSize:  int64(len(data)),
			ProcessedSize: int64(buf.Len()),
			Duration:      time.Since(start),
			Warnings:      warnings,
		}
		if result.ProcessedSize > 0 {
			result.CompressionRatio = float64(result.OriginalSize) / float64(result.ProcessedSize)
		}
		return result, nil
	}
}

func longestEdge(b image.Rectangle) int {
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

func scaleToFit(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var newWidth, newHeight int
	if width >= height {
		newWidth = maxEdge
		newHeight = height * maxEdge / width
	} else {
		newHeight = maxEdge
		newWidth = width * maxEdge / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// scaleToBox fits img into a width×height box preserving aspect ratio.
// Images already inside the box are returned unchanged.
func scaleToBox(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxWidth && height <= maxHeight {
		return img
	}

	ratioW := float64(maxWidth) / float64(width)
	ratioH := float64(maxHeight) / float64(height)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}

	newWidth := int(float64(width) * ratio)
	newHeight := int(float64(height) * ratio)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

func hasAlpha(img image.Image) bool {
	if opaquer, ok := img.(interface{ Opaque() bool }); ok {
		return !opaquer.Opaque()
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

func encodeFormat(img image.Image, format domain.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return buf.Bytes(), nil
}

func normalizeFormatName(name string) domain.ImageFormat {
	switch name {
	case "jpeg", "jpg":
		return domain.FormatJPEG
	case "png":
		return domain.FormatPNG
	case "gif":
		return domain.FormatGIF
	case "webp":
		return domain.FormatWebP
	case "bmp":
		return domain.FormatBMP
	case "tiff":
		return domain.FormatTIFF
	default:
		return domain.ImageFormat(name)
	}
}
