package domain

import "time"

type ImageRecord struct {
	ID               string
	OriginalFilename string
	StorageKey       string
	Size             int64
	Width            int
	Height           int
	Format           ImageFormat
	MimeType         string
	Title            string
	Description      string
	AltText          string
	Category         string
	Tags             []string
	UseCount         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type VariantRecord struct {
	ID         string
	ImageID    string
	Kind       VariantKind
	StorageKey string
	Width      int
	Height     int
	Size       int64
	Format     ImageFormat
	Quality    int
	CreatedAt  time.Time
}

type VariantKind string

const (
	VariantThumbnail VariantKind = "thumbnail"
	VariantSmall     VariantKind = "small"
	VariantMedium    VariantKind = "medium"
)

type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
	FormatBMP  ImageFormat = "bmp"
	FormatTIFF ImageFormat = "tiff"
	FormatSVG  ImageFormat = "svg"
	FormatHEIC ImageFormat = "heic"
	FormatHEIF ImageFormat = "heif"
	FormatAVIF ImageFormat = "avif"
)

func (f ImageFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWebP:
		return "image/webp"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatSVG:
		return "image/svg+xml"
	case FormatHEIC:
		return "image/heic"
	case FormatHEIF:
		return "image/heif"
	case FormatAVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

func (f ImageFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatSVG:
		return ".svg"
	default:
		return "." + string(f)
	}
}

const (
	MaxUploadSize = 200 << 20
	MaxBulkItems  = 10

	PathPrefixOriginal = "images/"
	PathPrefixVariant  = "variants/"
)
