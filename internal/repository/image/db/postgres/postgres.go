package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"image-ingest/internal/domain"
	"image-ingest/internal/repository/image"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
)

type ImagesRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewImagesRepository(db *dbpg.DB, retries retry.Strategy) *ImagesRepository {
	return &ImagesRepository{
		db:      db,
		retries: retries,
	}
}

func (r *ImagesRepository) SaveImage(ctx context.Context, img *domain.ImageRecord) error {
	query := `
		INSERT INTO images (
			id, original_filename, storage_key, size, width, height,
			format, mime_type, title, description, alt_text, category,
			tags, use_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		img.ID,
		img.OriginalFilename,
		img.StorageKey,
		img.Size,
		img.Width,
		img.Height,
		img.Format,
		img.MimeType,
		img.Title,
		img.Description,
		img.AltText,
		img.Category,
		strings.Join(img.Tags, ","),
		img.UseCount,
		img.CreatedAt,
		img.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	return nil
}

func (r *ImagesRepository) GetImageByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	query := `
		SELECT id, original_filename, storage_key, size, width, height,
		       format, mime_type, title, description, alt_text, category,
		       tags, use_count, created_at, updated_at
		FROM images
		WHERE id = $1
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	var img domain.ImageRecord
	var tags string
	err = row.Scan(
		&img.ID,
		&img.OriginalFilename,
		&img.StorageKey,
		&img.Size,
		&img.Width,
		&img.Height,
		&img.Format,
		&img.MimeType,
		&img.Title,
		&img.Description,
		&img.AltText,
		&img.Category,
		&tags,
		&img.UseCount,
		&img.CreatedAt,
		&img.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, image.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan image: %w", err)
	}

	if tags != "" {
		img.Tags = strings.Split(tags, ",")
	}

	return &img, nil
}

func (r *ImagesRepository) SaveVariant(ctx context.Context, variant *domain.VariantRecord) error {
	query := `
		INSERT INTO image_variants (
			id, image_id, kind, storage_key, width, height,
			size, format, quality, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecWithRetry(ctx, r.retries, query,
		variant.ID,
		variant.ImageID,
		variant.Kind,
		variant.StorageKey,
		variant.Width,
		variant.Height,
		variant.Size,
		variant.Format,
		variant.Quality,
		variant.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save variant: %w", err)
	}

	return nil
}

func (r *ImagesRepository) GetVariant(ctx context.Context, imageID string, kind domain.VariantKind) (*domain.VariantRecord, error) {
	query := `
		SELECT id, image_id, kind, storage_key, width, height,
		       size, format, quality, created_at
		FROM image_variants
		WHERE image_id = $1 AND kind = $2
		LIMIT 1
	`

	row, err := r.db.QueryRowWithRetry(ctx, r.retries, query, imageID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	var v domain.VariantRecord
	err = row.Scan(
		&v.ID,
		&v.ImageID,
		&v.Kind,
		&v.StorageKey,
		&v.Width,
		&v.Height,
		&v.Size,
		&v.Format,
		&v.Quality,
		&v.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan variant: %w", err)
	}

	return &v, nil
}

func (r *ImagesRepository) ListVariants(ctx context.Context, imageID string) ([]domain.VariantRecord, error) {
	query := `
		SELECT id, image_id, kind, storage_key, width, height,
		       size, format, quality, created_at
		FROM image_variants
		WHERE image_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryWithRetry(ctx, r.retries, query, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.VariantRecord
	for rows.Next() {
		var v domain.VariantRecord
		err := rows.Scan(
			&v.ID,
			&v.ImageID,
			&v.Kind,
			&v.StorageKey,
			&v.Width,
			&v.Height,
			&v.Size,
			&v.Format,
			&v.Quality,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

// DeleteImage removes the image row and its variant rows.
func (r *ImagesRepository) DeleteImage(ctx context.Context, id string) error {
	if _, err := r.db.ExecWithRetry(ctx, r.retries, `DELETE FROM image_variants WHERE image_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete variants: %w", err)
	}

	result, err := r.db.ExecWithRetry(ctx, r.retries, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return image.ErrImageNotFound
	}

	return nil
}

func (r *ImagesRepository) TrackUsage(ctx context.Context, id string) error {
	query := `UPDATE images SET use_count = use_count + 1, updated_at = $1 WHERE id = $2`

	result, err := r.db.ExecWithRetry(ctx, r.retries, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to track usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return image.ErrImageNotFound
	}

	return nil
}
