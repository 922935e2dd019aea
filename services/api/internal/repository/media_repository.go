package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MediaRepository interface {
	Create(ctx context.Context, a *domain.MediaAsset) error
	FindByPublicID(ctx context.Context, publicID string) (*domain.MediaAsset, error)
	Delete(ctx context.Context, publicID string) error
}

type mediaRepository struct {
	pool *pgxpool.Pool
}

func NewMediaRepository(pool *pgxpool.Pool) MediaRepository {
	return &mediaRepository{pool: pool}
}

func (r *mediaRepository) Create(ctx context.Context, a *domain.MediaAsset) error {
	const q = `
		INSERT INTO media_assets (public_id, storage_key, url, format, width, height, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid)
		RETURNING created_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		a.PublicID, a.StorageKey, a.URL, a.Format, a.Width, a.Height, a.Size, a.UploadedBy,
	).Scan(&a.CreatedAt)
}

func (r *mediaRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.MediaAsset, error) {
	const q = `
		SELECT public_id, storage_key, url, format, width, height, size_bytes,
		       COALESCE(uploaded_by::text, ''), created_at
		FROM media_assets WHERE public_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.MediaAsset
	err := r.pool.QueryRow(ctx, q, publicID).Scan(
		&a.PublicID, &a.StorageKey, &a.URL, &a.Format, &a.Width, &a.Height, &a.Size, &a.UploadedBy, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *mediaRepository) Delete(ctx context.Context, publicID string) error {
	const q = `DELETE FROM media_assets WHERE public_id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, publicID)
	return err
}
