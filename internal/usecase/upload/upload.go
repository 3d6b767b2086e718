package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"
	repoImage "image-ingest/internal/repository/image"
	"image-ingest/internal/resource"
	"image-ingest/internal/usecase/processor"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

const bulkPressurePause = 300 * time.Millisecond

// Usecase is the upload orchestrator: it validates input, runs format
// detection and the processing cascade, derives variants, writes blobs
// and persists metadata, cleaning up compensatingly when a later step
// fails.
type Usecase struct {
	repo          imageRepository
	files         fileRepository
	producer      eventProducer
	engine        processingEngine
	variants      variantEngine
	monitor       resourceMonitor
	sessions      *SessionManager
	logger        *zlog.Zerolog
	maxUploadSize int64
}

func NewUsecase(
	repo imageRepository,
	files fileRepository,
	producer eventProducer,
	engine processingEngine,
	variants variantEngine,
	monitor resourceMonitor,
	sessions *SessionManager,
	logger *zlog.Zerolog,
) *Usecase {
	return &Usecase{
		repo:          repo,
		files:         files,
		producer:      producer,
		engine:        engine,
		variants:      variants,
		monitor:       monitor,
		sessions:      sessions,
		logger:        logger,
		maxUploadSize: domain.MaxUploadSize,
	}
}

// UploadBase64 decodes the transport encoding (raw base64 or a data URL)
// and runs the full upload pipeline.
func (u *Usecase) UploadBase64(ctx context.Context, filename, fileType, contentB64 string, meta domain.UploadMetadata) (*domain.UploadResult, error) {
	data, err := decodeTransfer(contentB64)
	if err != nil {
		return nil, apperror.Validation("file content is not valid base64")
	}
	return u.Upload(ctx, filename, fileType, data, meta)
}

func (u *Usecase) Upload(ctx context.Context, filename, fileType string, data []byte, meta domain.UploadMetadata) (*domain.UploadResult, error) {
	if len(data) == 0 {
		return nil, apperror.Validation("empty upload payload")
	}
	if int64(len(data)) > u.maxUploadSize {
		return nil, apperror.Validation(fmt.Sprintf("upload exceeds the %d MB limit", u.maxUploadSize>>20))
	}

	detection, err := processor.Detect(data, filename)
	if err != nil {
		u.logger.Warn().Err(err).Str("filename", filename).Msg("Format detection failed")
		return nil, err
	}

	result, err := u.engine.Process(ctx, data, filename, detection.Format)
	if err != nil {
		u.logger.Error().Err(err).Str("filename", filename).Msg("Processing cascade exhausted")
		return nil, err
	}

	if meta.WatermarkText != "" {
		if err := processor.ApplyWatermark(result, meta.WatermarkText); err != nil {
			u.logger.Warn().Err(err).Str("filename", filename).Msg("Watermark failed, keeping unmarked asset")
			result.Warnings = append(result.Warnings, "watermark could not be applied")
		}
	}

	imageID := uuid.New().String()
	storageKey := fmt.Sprintf("%s%s/original%s", domain.PathPrefixOriginal, imageID, result.Extension)

	if err := u.files.SaveObject(ctx, storageKey, result.Data, result.MimeType); err != nil {
		u.logger.Error().Err(err).Str("key", storageKey).Msg("Failed to store processed image")
		return nil, err
	}

	variants, variantErrs := u.persistVariants(ctx, imageID, result)

	now := time.Now()
	record := &domain.ImageRecord{
		ID:               imageID,
		OriginalFilename: filename,
		StorageKey:       storageKey,
		Size:             result.ProcessedSize,
		Width:            result.Width,
		Height:           result.Height,
		Format:           result.Format,
		MimeType:         result.MimeType,
		Title:            meta.Title,
		Description:      meta.Description,
		AltText:          meta.AltText,
		Category:         meta.Category,
		Tags:             meta.Tags,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := u.repo.SaveImage(ctx, record); err != nil {
		// The blob must not outlive a failed metadata write.
		u.compensate(ctx, storageKey, variants)
		u.logger.Error().Err(err).Str("image_id", imageID).Msg("Failed to save image metadata")
		return nil, apperror.Storage("failed to persist image metadata", err, 5*time.Second)
	}

	for i := range variants {
		if err := u.repo.SaveVariant(ctx, &variants[i]); err != nil {
			u.logger.Error().
				Err(err).
				Str("image_id", imageID).
				Str("variant", string(variants[i].Kind)).
				Msg("Failed to save variant metadata")
			variantErrs = append(variantErrs, fmt.Sprintf("variant %s: metadata not persisted", variants[i].Kind))
		}
	}

	u.publishEvent(ctx, record, len(variants))

	u.logger.Info().
		Str("image_id", imageID).
		Str("filename", filename).
		Str("strategy", result.Strategy).
		Str("format", string(result.Format)).
		Int("variants", len(variants)).
		Msg("Image uploaded")

	return &domain.UploadResult{
		ImageID:          imageID,
		StorageKey:       storageKey,
		Filename:         filename,
		Format:           result.Format,
		Confidence:       detection.Confidence,
		Width:            result.Width,
		Height:           result.Height,
		OriginalSize:     result.OriginalSize,
		ProcessedSize:    result.ProcessedSize,
		CompressionRatio: result.CompressionRatio,
		Strategy:         result.Strategy,
		Duration:         result.Duration,
		Warnings:         result.Warnings,
		Variants:         variants,
		VariantErrors:    variantErrs,
	}, nil
}

// persistVariants derives the renditions and writes their blobs. Failures
// stay per-variant: the parent upload proceeds with whatever succeeded.
func (u *Usecase) persistVariants(ctx context.Context, imageID string, result *domain.ProcessingResult) ([]domain.VariantRecord, []string) {
	generated, failures := u.variants.Generate(ctx, result.Data)

	var errs []string
	for _, f := range failures {
		errs = append(errs, f.Error())
	}

	var records []domain.VariantRecord
	for _, g := range generated {
		key := fmt.Sprintf("%s%s/%s%s", domain.PathPrefixVariant, imageID, g.Spec.Kind, g.Spec.Format.Extension())
		if err := u.files.SaveObject(ctx, key, g.Data, g.MimeType); err != nil {
			u.logger.Error().
				Err(err).
				Str("image_id", imageID).
				Str("variant", string(g.Spec.Kind)).
				Msg("Failed to store variant")
			errs = append(errs, fmt.Sprintf("variant %s: %v", g.Spec.Kind, err))
			continue
		}
		records = append(records, domain.VariantRecord{
			ID:         uuid.New().String(),
			ImageID:    imageID,
			Kind:       g.Spec.Kind,
			StorageKey: key,
			Width:      g.Width,
			Height:     g.Height,
			Size:       int64(len(g.Data)),
			Format:     g.Spec.Format,
			Quality:    g.Spec.Quality,
			CreatedAt:  time.Now(),
		})
	}
	return records, errs
}

func (u *Usecase) compensate(ctx context.Context, storageKey string, variants []domain.VariantRecord) {
	if err := u.files.DeleteObject(ctx, storageKey); err != nil {
		u.logger.Error().Err(err).Str("key", storageKey).Msg("Compensating delete failed, blob orphaned")
	}
	for _, v := range variants {
		if err := u.files.DeleteObject(ctx, v.StorageKey); err != nil {
			u.logger.Error().Err(err).Str("key", v.StorageKey).Msg("Compensating variant delete failed")
		}
	}
}

func (u *Usecase) publishEvent(ctx context.Context, record *domain.ImageRecord, variants int) {
	if u.producer == nil {
		return
	}
	event := domain.IngestEvent{
		ImageID:    record.ID,
		StorageKey: record.StorageKey,
		Filename:   record.OriginalFilename,
		Format:     record.Format,
		Size:       record.Size,
		Width:      record.Width,
		Height:     record.Height,
		Variants:   variants,
		OccurredAt: time.Now(),
	}
	if err := u.producer.Publish(ctx, event); err != nil {
		u.logger.Warn().Err(err).Str("image_id", record.ID).Msg("Failed to publish ingest event")
	}
}

// UploadChunk feeds one chunk into the session manager and, when the
// session completes, runs the assembled payload through the full
// pipeline.
func (u *Usecase) UploadChunk(ctx context.Context, sessionID string, index, total int, chunkB64, filename, fileType string) (*domain.ChunkAck, error) {
	data, err := decodeTransfer(chunkB64)
	if err != nil {
		return nil, apperror.Validation("chunk content is not valid base64")
	}

	ack, assembled, err := u.sessions.SubmitChunk(sessionID, index, total, data, filename, fileType)
	if err != nil {
		return nil, err
	}

	if ack.Complete {
		result, err := u.Upload(ctx, filename, fileType, assembled, domain.UploadMetadata{})
		if err != nil {
			return nil, err
		}
		ack.Result = result
	}
	return ack, nil
}

// BulkUpload loops over single uploads, pausing under memory pressure
// between items and collecting per-item failures instead of aborting.
func (u *Usecase) BulkUpload(ctx context.Context, items []domain.BulkItem) (*domain.BulkResult, error) {
	if len(items) == 0 {
		return nil, apperror.Validation("no upload items provided")
	}
	if len(items) > domain.MaxBulkItems {
		return nil, apperror.Validation(fmt.Sprintf("bulk upload limited to %d items per call", domain.MaxBulkItems))
	}

	bulk := &domain.BulkResult{}
	for i, item := range items {
		if i > 0 && resource.Classify(u.monitor.Sample()) >= resource.PressureHigh {
			u.monitor.Cleanup(ctx)
			pause(ctx, bulkPressurePause)
		}

		result, err := u.UploadBase64(ctx, item.Filename, item.FileType, item.ContentB64, item.Metadata)
		if err != nil {
			bulk.Errors = append(bulk.Errors, domain.BulkItemError{
				Filename: item.Filename,
				Message:  err.Error(),
			})
			continue
		}
		bulk.Results = append(bulk.Results, *result)
	}
	return bulk, nil
}

// GetImage streams the original or a named variant and tracks usage.
func (u *Usecase) GetImage(ctx context.Context, id string, kind string) (*domain.ImageRecord, io.ReadCloser, string, error) {
	record, err := u.repo.GetImageByID(ctx, id)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to get image: %w", err)
	}

	key := record.StorageKey
	contentType := record.MimeType
	if kind != "" {
		variant, err := u.repo.GetVariant(ctx, id, domain.VariantKind(kind))
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to get variant: %w", err)
		}
		if variant == nil {
			return nil, nil, "", repoImage.ErrVariantNotFound
		}
		key = variant.StorageKey
		contentType = variant.Format.ContentType()
	}

	reader, err := u.files.GetObject(ctx, key)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to get image object: %w", err)
	}

	if err := u.repo.TrackUsage(ctx, id); err != nil {
		u.logger.Warn().Err(err).Str("image_id", id).Msg("Failed to track usage")
	}

	return record, reader, contentType, nil
}

// DeleteImage removes the record, its variants and all associated blobs.
func (u *Usecase) DeleteImage(ctx context.Context, id string) error {
	record, err := u.repo.GetImageByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get image for deletion: %w", err)
	}

	variants, err := u.repo.ListVariants(ctx, id)
	if err != nil {
		u.logger.Error().Err(err).Str("image_id", id).Msg("Failed to list variants for deletion")
	}

	if err := u.files.DeleteObject(ctx, record.StorageKey); err != nil {
		u.logger.Error().Err(err).Str("key", record.StorageKey).Msg("Failed to delete original blob")
	}
	for _, v := range variants {
		if err := u.files.DeleteObject(ctx, v.StorageKey); err != nil {
			u.logger.Error().Err(err).Str("key", v.StorageKey).Msg("Failed to delete variant blob")
		}
	}

	if err := u.repo.DeleteImage(ctx, id); err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	u.logger.Info().Str("image_id", id).Msg("Image deleted")
	return nil
}

func decodeTransfer(content string) ([]byte, error) {
	if strings.HasPrefix(content, "data:") {
		idx := strings.Index(content, ";base64,")
		if idx < 0 {
			return nil, fmt.Errorf("data URL without base64 payload")
		}
		content = content[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(content)
}

func pause(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
