package dto

import "time"

type UploadRequest struct {
	FileName    string           `json:"file_name" validate:"required"`
	FileType    string           `json:"file_type"`
	FileContent string           `json:"file_content" validate:"required"`
	Metadata    *MetadataPayload `json:"metadata"`
}

type MetadataPayload struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	AltText       string   `json:"alt_text"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	WatermarkText string   `json:"watermark_text"`
}

type ChunkRequest struct {
	SessionID   string `json:"session_id"`
	ChunkIndex  int    `json:"chunk_index" validate:"min=0"`
	TotalChunks int    `json:"total_chunks" validate:"required,min=1"`
	Chunk       string `json:"chunk" validate:"required"`
	FileName    string `json:"file_name" validate:"required"`
	FileType    string `json:"file_type"`
}

type BulkUploadRequest struct {
	Items []UploadRequest `json:"items" validate:"required,min=1,max=10,dive"`
}

type VariantPayload struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	StorageKey string `json:"storage_key"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
}

type UploadResponse struct {
	ID               string           `json:"id"`
	StorageKey       string           `json:"storage_key"`
	Filename         string           `json:"filename"`
	Format           string           `json:"format"`
	Confidence       string           `json:"confidence"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	OriginalSize     int64            `json:"original_size"`
	ProcessedSize    int64            `json:"processed_size"`
	CompressionRatio float64          `json:"compression_ratio"`
	Strategy         string           `json:"strategy"`
	DurationMs       int64            `json:"duration_ms"`
	Warnings         []string         `json:"warnings,omitempty"`
	Variants         []VariantPayload `json:"variants"`
	VariantErrors    []string         `json:"variant_errors,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

type ChunkResponse struct {
	SessionID string          `json:"session_id"`
	Complete  bool            `json:"complete"`
	Received  int             `json:"received"`
	Total     int             `json:"total"`
	Result    *UploadResponse `json:"result,omitempty"`
}

type BulkErrorPayload struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

type BulkUploadResponse struct {
	Results []UploadResponse   `json:"results"`
	Errors  []BulkErrorPayload `json:"errors"`
}

type ErrorResponse struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Category    string   `json:"category,omitempty"`
	Retryable   bool     `json:"retryable"`
	Suggestions []string `json:"suggestions,omitempty"`
	Details     string   `json:"details,omitempty"`
}
