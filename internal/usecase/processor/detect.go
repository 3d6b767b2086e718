package processor

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"

	"github.com/gabriel-vasile/mimetype"
)

var mimeFormats = map[string]domain.ImageFormat{
	"image/jpeg":     domain.FormatJPEG,
	"image/png":      domain.FormatPNG,
	"image/gif":      domain.FormatGIF,
	"image/webp":     domain.FormatWebP,
	"image/bmp":      domain.FormatBMP,
	"image/x-ms-bmp": domain.FormatBMP,
	"image/tiff":     domain.FormatTIFF,
	"image/svg+xml":  domain.FormatSVG,
	"image/heic":     domain.FormatHEIC,
	"image/heif":     domain.FormatHEIF,
	"image/avif":     domain.FormatAVIF,
}

var extensionFormats = map[string]domain.ImageFormat{
	".jpg":  domain.FormatJPEG,
	".jpeg": domain.FormatJPEG,
	".png":  domain.FormatPNG,
	".gif":  domain.FormatGIF,
	".webp": domain.FormatWebP,
	".bmp":  domain.FormatBMP,
	".tiff": domain.FormatTIFF,
	".tif":  domain.FormatTIFF,
	".svg":  domain.FormatSVG,
	".heic": domain.FormatHEIC,
	".heif": domain.FormatHEIF,
	".avif": domain.FormatAVIF,
}

// Detect identifies the image format of raw upload bytes. Magic-byte
// signatures win, a decode probe is the fallback, and the filename
// extension is the last resort with matching confidence grades.
func Detect(data []byte, filename string) (domain.FormatDetection, error) {
	mt := mimetype.Detect(data)
	if format, ok := mimeFormats[mt.String()]; ok {
		return domain.FormatDetection{
			Format:     format,
			MimeType:   mt.String(),
			Confidence: domain.ConfidenceHigh,
		}, nil
	}

	if _, name, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		format := normalizeFormatName(name)
		return domain.FormatDetection{
			Format:     format,
			MimeType:   format.ContentType(),
			Confidence: domain.ConfidenceMedium,
		}, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if format, ok := extensionFormats[ext]; ok {
		return domain.FormatDetection{
			Format:     format,
			MimeType:   format.ContentType(),
			Confidence: domain.ConfidenceLow,
		}, nil
	}

	return domain.FormatDetection{}, apperror.Format(
		"unable to determine image format",
		"re-save the file in an image editor",
		"convert the file to JPEG or PNG before uploading",
	)
}
