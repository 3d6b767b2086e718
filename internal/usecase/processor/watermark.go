package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"image-ingest/internal/domain"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var watermarkFont *truetype.Font

func init() {
	f, err := truetype.Parse(goregular.TTF)
	if err == nil {
		watermarkFont = f
	}
}

// ApplyWatermark stamps text into the bottom-right corner of a processed
// original and re-encodes it in place. The processed bytes must be in
// one of our own output formats (JPEG or PNG).
func ApplyWatermark(result *domain.ProcessingResult, text string) error {
	if watermarkFont == nil {
		return fmt.Errorf("watermark font unavailable")
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		return fmt.Errorf("failed to decode processed image: %w", err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, image.Point{}, draw.Src)

	fontSize := float64(bounds.Dx()) / 32
	if fontSize < 16 {
		fontSize = 16
	}
	if fontSize > 64 {
		fontSize = 64
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(watermarkFont)
	c.SetFontSize(fontSize)
	c.SetClip(canvas.Bounds())
	c.SetDst(canvas)
	c.SetSrc(image.NewUniform(color.RGBA{255, 255, 255, 128}))
	c.SetHinting(font.HintingFull)

	margin := 20
	textWidth := int(float64(len(text)) * fontSize * 0.6)
	pt := freetype.Pt(bounds.Dx()-textWidth-margin, bounds.Dy()-margin)

	if _, err := c.DrawString(text, pt); err != nil {
		return fmt.Errorf("failed to draw watermark text: %w", err)
	}

	quality := 85
	data, err := encodeFormat(canvas, result.Format, quality)
	if err != nil {
		return fmt.Errorf("failed to re-encode watermarked image: %w", err)
	}

	result.Data = data
	result.ProcessedSize = int64(len(data))
	if result.ProcessedSize > 0 {
		result.CompressionRatio = float64(result.OriginalSize) / float64(result.ProcessedSize)
	}
	return nil
}
