package domain

import "time"

// ProcessingResult is the outcome of one successful strategy run. The
// orchestrator owns it until the bytes are persisted or discarded.
type ProcessingResult struct {
	Data             []byte
	MimeType         string
	Extension        string
	Format           ImageFormat
	Width            int
	Height           int
	OriginalSize     int64
	ProcessedSize    int64
	CompressionRatio float64
	Duration         time.Duration
	Strategy         string
	Warnings         []string
}

type DetectionConfidence string

const (
	ConfidenceHigh   DetectionConfidence = "high"
	ConfidenceMedium DetectionConfidence = "medium"
	ConfidenceLow    DetectionConfidence = "low"
)

type FormatDetection struct {
	Format     ImageFormat
	MimeType   string
	Confidence DetectionConfidence
}

type UploadMetadata struct {
	Title         string
	Description   string
	AltText       string
	Category      string
	Tags          []string
	WatermarkText string
}

type UploadResult struct {
	ImageID          string
	StorageKey       string
	Filename         string
	Format           ImageFormat
	Confidence       DetectionConfidence
	Width            int
	Height           int
	OriginalSize     int64
	ProcessedSize    int64
	CompressionRatio float64
	Strategy         string
	Duration         time.Duration
	Warnings         []string
	Variants         []VariantRecord
	VariantErrors    []string
}

type BulkItem struct {
	Filename   string
	FileType   string
	ContentB64 string
	Metadata   UploadMetadata
}

type BulkItemError struct {
	Filename string
	Message  string
}

type BulkResult struct {
	Results []UploadResult
	Errors  []BulkItemError
}

// UploadSession accumulates the chunks of one progressive upload. A
// session is complete once every index in [0, TotalChunks) has arrived.
type UploadSession struct {
	ID           string
	Filename     string
	FileType     string
	TotalChunks  int
	Chunks       map[int][]byte
	TotalBytes   int64
	CreatedAt    time.Time
	LastActivity time.Time
}

type ChunkAck struct {
	SessionID string
	Complete  bool
	Received  int
	Total     int
	Result    *UploadResult
}

// IngestEvent is published after an upload has been fully persisted.
type IngestEvent struct {
	ImageID    string      `json:"image_id"`
	StorageKey string      `json:"storage_key"`
	Filename   string      `json:"filename"`
	Format     ImageFormat `json:"format"`
	Size       int64       `json:"size"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Variants   int         `json:"variants"`
	OccurredAt time.Time   `json:"occurred_at"`
}
