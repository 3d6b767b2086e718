package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"
	"image-ingest/internal/http-server/handler/upload/dto"
	repoImage "image-ingest/internal/repository/image"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/zlog"
)

type Handler struct {
	usecase  uploadUsecase
	validate *validator.Validate
	logger   *zlog.Zerolog
}

func NewHandler(usecase uploadUsecase, logger *zlog.Zerolog) *Handler {
	return &Handler{
		usecase:  usecase,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req dto.UploadRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.usecase.UploadBase64(r.Context(), req.FileName, req.FileType, req.FileContent, toMetadata(req.Metadata))
	if err != nil {
		h.respondAppError(w, err, req.FileName)
		return
	}

	h.respondJSON(w, http.StatusCreated, toUploadResponse(result))
}

func (h *Handler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	var req dto.ChunkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ack, err := h.usecase.UploadChunk(r.Context(), req.SessionID, req.ChunkIndex, req.TotalChunks, req.Chunk, req.FileName, req.FileType)
	if err != nil {
		h.respondAppError(w, err, req.FileName)
		return
	}

	resp := dto.ChunkResponse{
		SessionID: ack.SessionID,
		Complete:  ack.Complete,
		Received:  ack.Received,
		Total:     ack.Total,
	}
	if ack.Result != nil {
		full := toUploadResponse(ack.Result)
		resp.Result = &full
	}

	status := http.StatusAccepted
	if ack.Complete {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, resp)
}

func (h *Handler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkUploadRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	items := make([]domain.BulkItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.BulkItem{
			Filename:   item.FileName,
			FileType:   item.FileType,
			ContentB64: item.FileContent,
			Metadata:   toMetadata(item.Metadata),
		})
	}

	bulk, err := h.usecase.BulkUpload(r.Context(), items)
	if err != nil {
		h.respondAppError(w, err, "")
		return
	}

	resp := dto.BulkUploadResponse{
		Results: make([]dto.UploadResponse, 0, len(bulk.Results)),
		Errors:  make([]dto.BulkErrorPayload, 0, len(bulk.Errors)),
	}
	for i := range bulk.Results {
		resp.Results = append(resp.Results, toUploadResponse(&bulk.Results[i]))
	}
	for _, e := range bulk.Errors {
		resp.Errors = append(resp.Errors, dto.BulkErrorPayload{Filename: e.Filename, Message: e.Message})
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "Image ID is required")
		return
	}
	variant := r.URL.Query().Get("variant")

	record, reader, contentType, err := h.usecase.GetImage(r.Context(), id, variant)
	if err != nil {
		h.respondAppError(w, err, id)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", record.OriginalFilename))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error().Err(err).Str("image_id", id).Str("variant", variant).Msg("Failed to stream image")
	}
}

func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "Image ID is required")
		return
	}

	if err := h.usecase.DeleteImage(r.Context(), id); err != nil {
		h.respondAppError(w, err, id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode request body")
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) respondAppError(w http.ResponseWriter, err error, subject string) {
	switch {
	case errors.Is(err, repoImage.ErrImageNotFound):
		h.respondError(w, http.StatusNotFound, "Image not found")
		return
	case errors.Is(err, repoImage.ErrVariantNotFound):
		h.respondError(w, http.StatusNotFound, "Variant not found")
		return
	}

	category := apperror.CategoryOf(err)
	status := statusForCategory(category)

	if retryAfter := apperror.RetryAfter(err); retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
	}

	h.logger.Error().
		Err(err).
		Str("category", string(category)).
		Str("subject", subject).
		Msg("Request failed")

	var appErr *apperror.Error
	resp := dto.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   "Request failed",
		Category:  string(category),
		Retryable: apperror.IsRetryable(err),
	}
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Suggestions = appErr.Suggestions
	} else {
		resp.Details = err.Error()
	}

	h.respondJSON(w, status, resp)
}

func statusForCategory(category apperror.Category) int {
	switch category {
	case apperror.CategoryValidation:
		return http.StatusBadRequest
	case apperror.CategoryFormat:
		return http.StatusUnsupportedMediaType
	case apperror.CategoryAuth:
		return http.StatusUnauthorized
	case apperror.CategoryProcessing:
		return http.StatusUnprocessableEntity
	case apperror.CategoryStorage, apperror.CategoryMemory:
		return http.StatusServiceUnavailable
	case apperror.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func toMetadata(payload *dto.MetadataPayload) domain.UploadMetadata {
	if payload == nil {
		return domain.UploadMetadata{}
	}
	return domain.UploadMetadata{
		Title:         payload.Title,
		Description:   payload.Description,
		AltText:       payload.AltText,
		Category:      payload.Category,
		Tags:          payload.Tags,
		WatermarkText: payload.WatermarkText,
	}
}

func toUploadResponse(result *domain.UploadResult) dto.UploadResponse {
	variants := make([]dto.VariantPayload, 0, len(result.Variants))
	for _, v := range result.Variants {
		variants = append(variants, dto.VariantPayload{
			ID:         v.ID,
			Kind:       string(v.Kind),
			StorageKey: v.StorageKey,
			Width:      v.Width,
			Height:     v.Height,
			Size:       v.Size,
		})
	}
	return dto.UploadResponse{
		ID:               result.ImageID,
		StorageKey:       result.StorageKey,
		Filename:         result.Filename,
		Format:           string(result.Format),
		Confidence:       string(result.Confidence),
		Width:            result.Width,
		Height:           result.Height,
		OriginalSize:     result.OriginalSize,
		ProcessedSize:    result.ProcessedSize,
		CompressionRatio: result.CompressionRatio,
		Strategy:         result.Strategy,
		DurationMs:       result.Duration.Milliseconds(),
		Warnings:         result.Warnings,
		Variants:         variants,
		VariantErrors:    result.VariantErrors,
		CreatedAt:        time.Now(),
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
