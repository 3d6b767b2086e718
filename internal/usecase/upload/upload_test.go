package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"
	"image-ingest/internal/resource"
	"image-ingest/internal/usecase/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	saveImageErr   error
	saveVariantErr error
	record         *domain.ImageRecord
	variant        *domain.VariantRecord
	variants       []domain.VariantRecord

	savedImages   []*domain.ImageRecord
	savedVariants []*domain.VariantRecord
	tracked       []string
	deleted       []string
}

func (r *fakeRepo) SaveImage(ctx context.Context, record *domain.ImageRecord) error {
	if r.saveImageErr != nil {
		return r.saveImageErr
	}
	r.savedImages = append(r.savedImages, record)
	return nil
}

func (r *fakeRepo) SaveVariant(ctx context.Context, variant *domain.VariantRecord) error {
	if r.saveVariantErr != nil {
		return r.saveVariantErr
	}
	r.savedVariants = append(r.savedVariants, variant)
	return nil
}

func (r *fakeRepo) GetImageByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	if r.record == nil {
		return nil, errors.New("image not found")
	}
	return r.record, nil
}

func (r *fakeRepo) GetVariant(ctx context.Context, imageID string, kind domain.VariantKind) (*domain.VariantRecord, error) {
	return r.variant, nil
}

func (r *fakeRepo) ListVariants(ctx context.Context, imageID string) ([]domain.VariantRecord, error) {
	return r.variants, nil
}

func (r *fakeRepo) DeleteImage(ctx context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRepo) TrackUsage(ctx context.Context, id string) error {
	r.tracked = append(r.tracked, id)
	return nil
}

type fakeFiles struct {
	saveErr error
	objects map[string][]byte
	deleted []string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: make(map[string][]byte)}
}

func (f *fakeFiles) SaveObject(ctx context.Context, key string, data []byte, contentType string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeFiles) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFiles) DeleteObject(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type fakeEngine struct {
	err     error
	formats []domain.ImageFormat
}

func (e *fakeEngine) Process(ctx context.Context, data []byte, filename string, format domain.ImageFormat) (*domain.ProcessingResult, error) {
	e.formats = append(e.formats, format)
	if e.err != nil {
		return nil, e.err
	}
	return &domain.ProcessingResult{
		Data:          []byte("processed"),
		MimeType:      "image/jpeg",
		Extension:     ".jpg",
		Format:        domain.FormatJPEG,
		Width:         1024,
		Height:        768,
		OriginalSize:  int64(len(data)),
		ProcessedSize: 9,
		Strategy:      "high-quality",
	}, nil
}

type fakeVariants struct {
	generated []processor.GeneratedVariant
	failures  []error
}

func (v *fakeVariants) Generate(ctx context.Context, original []byte) ([]processor.GeneratedVariant, []error) {
	return v.generated, v.failures
}

type stubMonitor struct {
	stats    resource.Stats
	cleanups int
}

func (m *stubMonitor) Sample() resource.Stats      { return m.stats }
func (m *stubMonitor) Cleanup(ctx context.Context) { m.cleanups++ }

func comfortableStats() resource.Stats {
	return resource.Stats{HeapUsedMB: 100, HeapTotalMB: 1000, SystemAvailableMB: 8192}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func thumbnailVariant() processor.GeneratedVariant {
	return processor.GeneratedVariant{
		Spec:     processor.DefaultVariantSpecs()[0],
		Data:     []byte("thumb"),
		Width:    300,
		Height:   225,
		MimeType: "image/jpeg",
	}
}

type fixture struct {
	usecase  *Usecase
	repo     *fakeRepo
	files    *fakeFiles
	engine   *fakeEngine
	variants *fakeVariants
	monitor  *stubMonitor
}

func newFixture() *fixture {
	repo := &fakeRepo{}
	files := newFakeFiles()
	engine := &fakeEngine{}
	variants := &fakeVariants{generated: []processor.GeneratedVariant{thumbnailVariant()}}
	monitor := &stubMonitor{stats: comfortableStats()}
	sessions := NewSessionManager(NewMemorySessionStore(), 30*time.Minute, testLogger())

	return &fixture{
		usecase:  NewUsecase(repo, files, nil, engine, variants, monitor, sessions, testLogger()),
		repo:     repo,
		files:    files,
		engine:   engine,
		variants: variants,
		monitor:  monitor,
	}
}

func TestUploadHappyPath(t *testing.T) {
	f := newFixture()

	result, err := f.usecase.Upload(context.Background(), "photo.png", "image/png", pngBytes(t), domain.UploadMetadata{Title: "cover"})

	require.NoError(t, err)
	assert.NotEmpty(t, result.ImageID)
	assert.Equal(t, "images/"+result.ImageID+"/original.jpg", result.StorageKey)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "high-quality", result.Strategy)

	require.Len(t, result.Variants, 1)
	assert.Equal(t, "variants/"+result.ImageID+"/thumbnail.jpg", result.Variants[0].StorageKey)

	assert.Contains(t, f.files.objects, result.StorageKey)
	assert.Contains(t, f.files.objects, result.Variants[0].StorageKey)
	require.Len(t, f.repo.savedImages, 1)
	assert.Equal(t, "cover", f.repo.savedImages[0].Title)
	require.Len(t, f.repo.savedVariants, 1)

	// Detection feeds the cascade the real source format.
	require.Len(t, f.engine.formats, 1)
	assert.Equal(t, domain.FormatPNG, f.engine.formats[0])
}

func TestUploadRejectsEmptyAndOversizedPayloads(t *testing.T) {
	f := newFixture()

	_, err := f.usecase.Upload(context.Background(), "photo.png", "image/png", nil, domain.UploadMetadata{})
	require.Error(t, err)
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))

	f.usecase.maxUploadSize = 4
	_, err = f.usecase.Upload(context.Background(), "photo.png", "image/png", pngBytes(t), domain.UploadMetadata{})
	require.Error(t, err)
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))
	assert.Empty(t, f.engine.formats)
}

func TestUploadRejectsUndetectableFormat(t *testing.T) {
	f := newFixture()

	_, err := f.usecase.Upload(context.Background(), "mystery", "", []byte("not an image"), domain.UploadMetadata{})

	require.Error(t, err)
	assert.Equal(t, apperror.CategoryFormat, apperror.CategoryOf(err))
	assert.Empty(t, f.engine.formats)
}

func TestUploadCompensatesWhenMetadataWriteFails(t *testing.T) {
	f := newFixture()
	f.repo.saveImageErr = errors.New("db down")

	_, err := f.usecase.Upload(context.Background(), "photo.png", "image/png", pngBytes(t), domain.UploadMetadata{})

	require.Error(t, err)
	assert.Equal(t, apperror.CategoryStorage, apperror.CategoryOf(err))
	assert.True(t, apperror.IsRetryable(err))

	// Original blob and the already-written variant must both be removed.
	require.Len(t, f.files.deleted, 2)
	assert.True(t, strings.HasPrefix(f.files.deleted[0], "images/"))
	assert.True(t, strings.HasPrefix(f.files.deleted[1], "variants/"))
	assert.Empty(t, f.files.objects)
}

func TestUploadKeepsPartialVariantFailures(t *testing.T) {
	f := newFixture()
	f.variants.failures = []error{errors.New("variant medium: encode failed")}

	result, err := f.usecase.Upload(context.Background(), "photo.png", "image/png", pngBytes(t), domain.UploadMetadata{})

	require.NoError(t, err)
	require.Len(t, result.Variants, 1)
	require.Len(t, result.VariantErrors, 1)
	assert.Contains(t, result.VariantErrors[0], "encode failed")
}

func TestUploadBase64DecodesDataURL(t *testing.T) {
	f := newFixture()
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))

	result, err := f.usecase.UploadBase64(context.Background(), "photo.png", "image/png", encoded, domain.UploadMetadata{})

	require.NoError(t, err)
	assert.NotEmpty(t, result.ImageID)

	_, err = f.usecase.UploadBase64(context.Background(), "photo.png", "image/png", "!!!not base64!!!", domain.UploadMetadata{})
	require.Error(t, err)
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))
}

func TestUploadChunkCompletionRunsPipeline(t *testing.T) {
	f := newFixture()
	data := pngBytes(t)
	half := len(data) / 2
	chunks := []string{
		base64.StdEncoding.EncodeToString(data[:half]),
		base64.StdEncoding.EncodeToString(data[half:]),
	}

	ack, err := f.usecase.UploadChunk(context.Background(), "", 0, 2, chunks[0], "photo.png", "image/png")
	require.NoError(t, err)
	assert.False(t, ack.Complete)
	assert.Nil(t, ack.Result)

	ack, err = f.usecase.UploadChunk(context.Background(), ack.SessionID, 1, 2, chunks[1], "photo.png", "image/png")
	require.NoError(t, err)
	assert.True(t, ack.Complete)
	require.NotNil(t, ack.Result)
	assert.NotEmpty(t, ack.Result.ImageID)
	require.Len(t, f.repo.savedImages, 1)
}

func TestBulkUploadLimits(t *testing.T) {
	f := newFixture()

	_, err := f.usecase.BulkUpload(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))

	items := make([]domain.BulkItem, domain.MaxBulkItems+1)
	_, err = f.usecase.BulkUpload(context.Background(), items)
	require.Error(t, err)
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))
}

func TestBulkUploadCollectsPerItemFailures(t *testing.T) {
	f := newFixture()
	good := base64.StdEncoding.EncodeToString(pngBytes(t))
	bad := base64.StdEncoding.EncodeToString([]byte("not an image"))

	result, err := f.usecase.BulkUpload(context.Background(), []domain.BulkItem{
		{Filename: "a.png", FileType: "image/png", ContentB64: good},
		{Filename: "broken", FileType: "", ContentB64: bad},
		{Filename: "b.png", FileType: "image/png", ContentB64: good},
	})

	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].Filename)
}

func TestBulkUploadPausesUnderPressure(t *testing.T) {
	f := newFixture()
	f.monitor.stats = resource.Stats{HeapUsedMB: 100, HeapTotalMB: 1000, RSSMB: 3000, SystemAvailableMB: 8192}
	good := base64.StdEncoding.EncodeToString(pngBytes(t))

	_, err := f.usecase.BulkUpload(context.Background(), []domain.BulkItem{
		{Filename: "a.png", FileType: "image/png", ContentB64: good},
		{Filename: "b.png", FileType: "image/png", ContentB64: good},
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.monitor.cleanups, 1)
}

func TestGetImageTracksUsage(t *testing.T) {
	f := newFixture()
	f.repo.record = &domain.ImageRecord{
		ID:         "img-1",
		StorageKey: "images/img-1/original.jpg",
		MimeType:   "image/jpeg",
	}
	f.files.objects["images/img-1/original.jpg"] = []byte("blob")

	record, reader, contentType, err := f.usecase.GetImage(context.Background(), "img-1", "")

	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, "img-1", record.ID)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, []string{"img-1"}, f.repo.tracked)
}

func TestGetImageVariantNotFound(t *testing.T) {
	f := newFixture()
	f.repo.record = &domain.ImageRecord{ID: "img-1", StorageKey: "images/img-1/original.jpg"}

	_, _, _, err := f.usecase.GetImage(context.Background(), "img-1", "thumbnail")

	require.Error(t, err)
}

func TestDeleteImageRemovesBlobsAndRecord(t *testing.T) {
	f := newFixture()
	f.repo.record = &domain.ImageRecord{ID: "img-1", StorageKey: "images/img-1/original.jpg"}
	f.repo.variants = []domain.VariantRecord{
		{ImageID: "img-1", Kind: domain.VariantThumbnail, StorageKey: "variants/img-1/thumbnail.jpg"},
	}
	f.files.objects["images/img-1/original.jpg"] = []byte("blob")
	f.files.objects["variants/img-1/thumbnail.jpg"] = []byte("thumb")

	err := f.usecase.DeleteImage(context.Background(), "img-1")

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"images/img-1/original.jpg",
		"variants/img-1/thumbnail.jpg",
	}, f.files.deleted)
	assert.Equal(t, []string{"img-1"}, f.repo.deleted)
}
