package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/media"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/diagnosis/portfolio/services/api/internal/repository"
	"golang.org/x/sync/errgroup"
)

// MediaStore is the part of media.Uploader the upload service needs.
type MediaStore interface {
	Upload(ctx context.Context, dataURI string, opts media.UploadOptions) (*media.Asset, error)
	Delete(ctx context.Context, key string) error
}

type UploadService interface {
	Upload(ctx context.Context, by string, f domain.UploadFile, opts domain.UploadOptions) (*domain.MediaAsset, error)
	UploadBatch(ctx context.Context, by string, files []domain.UploadFile, opts domain.UploadOptions) ([]domain.MediaAsset, error)
	Delete(ctx context.Context, by, publicID string) error
}

type uploadService struct {
	store     MediaStore
	mediaRepo repository.MediaRepository
	eventBus  events.Publisher
	maxBytes  int64
	maxFiles  int
}

func NewUploadService(
	store MediaStore,
	mediaRepo repository.MediaRepository,
	eventBus events.Publisher,
	maxBytes int64,
	maxFiles int,
) UploadService {
	return &uploadService{
		store:     store,
		mediaRepo: mediaRepo,
		eventBus:  eventBus,
		maxBytes:  maxBytes,
		maxFiles:  maxFiles,
	}
}

func (s *uploadService) Upload(ctx context.Context, by string, f domain.UploadFile, opts domain.UploadOptions) (*domain.MediaAsset, error) {
	contentType, err := s.check(f)
	if err != nil {
		return nil, err
	}
	a, err := s.put(ctx, by, f, contentType, opts)
	if err != nil {
		return nil, err
	}
	s.completed(ctx, by, a)
	return a, nil
}

// UploadBatch stores every file or none. All files are checked before the
// first one is stored; if any store fails the ones already stored are removed.
func (s *uploadService) UploadBatch(ctx context.Context, by string, files []domain.UploadFile, opts domain.UploadOptions) ([]domain.MediaAsset, error) {
	if len(files) == 0 {
		return nil, domain.ValidationErrors{"images": "No files uploaded"}
	}
	if s.maxFiles > 0 && len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: at most %d files per request", domain.ErrTooManyFiles, s.maxFiles)
	}

	types := make([]string, len(files))
	for i, f := range files {
		ct, err := s.check(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Filename, err)
		}
		types[i] = ct
	}

	assets := make([]*domain.MediaAsset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range files {
		g.Go(func() error {
			a, err := s.put(gctx, by, files[i], types[i], opts)
			if err != nil {
				return fmt.Errorf("%s: %w", files[i].Filename, err)
			}
			assets[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.rollback(ctx, assets)
		return nil, err
	}

	out := make([]domain.MediaAsset, len(assets))
	for i, a := range assets {
		s.completed(ctx, by, a)
		out[i] = *a
	}
	return out, nil
}

func (s *uploadService) Delete(ctx context.Context, by, publicID string) error {
	a, err := s.mediaRepo.FindByPublicID(ctx, publicID)
	if err != nil {
		return fmt.Errorf("failed to find media asset: %w", err)
	}
	if a == nil {
		return domain.ErrNotFound
	}

	if err := s.store.Delete(ctx, a.StorageKey); err != nil && !errors.Is(err, media.ErrNotFound) {
		return fmt.Errorf("failed to delete stored media: %w", err)
	}
	if err := s.mediaRepo.Delete(ctx, publicID); err != nil {
		return fmt.Errorf("failed to delete media record: %w", err)
	}

	publish(ctx, s.eventBus, events.UploadDeleted, events.UploadEvent{PublicID: publicID, By: by})
	return nil
}

// check enforces the size limit and the allow-list against the sniffed
// content type, ignoring whatever type the client declared.
func (s *uploadService) check(f domain.UploadFile) (string, error) {
	if len(f.Data) == 0 {
		return "", domain.ValidationErrors{"image": "File is empty"}
	}
	if s.maxBytes > 0 && int64(len(f.Data)) > s.maxBytes {
		return "", media.ErrTooLarge
	}
	ct := media.SniffType(f.Data)
	if _, ok := media.AllowedTypes[ct]; !ok {
		return "", fmt.Errorf("%w: %s", media.ErrUnsupportedType, ct)
	}
	return ct, nil
}

func (s *uploadService) put(ctx context.Context, by string, f domain.UploadFile, contentType string, opts domain.UploadOptions) (*domain.MediaAsset, error) {
	asset, err := s.store.Upload(ctx, media.EncodeDataURI(contentType, f.Data), media.UploadOptions{
		Folder:  opts.Folder,
		Quality: opts.Quality,
		Format:  opts.Format,
	})
	if err != nil {
		return nil, err
	}

	a := &domain.MediaAsset{
		PublicID:   asset.PublicID,
		StorageKey: asset.StorageKey,
		URL:        asset.URL,
		Format:     asset.Format,
		Width:      asset.Width,
		Height:     asset.Height,
		Size:       asset.Size,
		UploadedBy: by,
	}
	if err := s.mediaRepo.Create(ctx, a); err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), asset.StorageKey); derr != nil {
			logger.WarnContext(ctx, "Failed to remove orphaned media", "key", asset.StorageKey, "error", derr)
		}
		return nil, fmt.Errorf("failed to record media asset: %w", err)
	}

	return a, nil
}

func (s *uploadService) completed(ctx context.Context, by string, a *domain.MediaAsset) {
	logger.InfoContext(ctx, "Media uploaded", "public_id", a.PublicID, "bytes", a.Size)
	publish(ctx, s.eventBus, events.UploadCompleted, events.UploadEvent{
		PublicID: a.PublicID,
		URL:      a.URL,
		Format:   a.Format,
		Size:     a.Size,
		By:       by,
	})
}

func (s *uploadService) rollback(ctx context.Context, assets []*domain.MediaAsset) {
	ctx = context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, a := range assets {
		if a == nil {
			continue
		}
		wg.Add(1)
		go func(a *domain.MediaAsset) {
			defer wg.Done()
			if err := s.store.Delete(ctx, a.StorageKey); err != nil && !errors.Is(err, media.ErrNotFound) {
				logger.WarnContext(ctx, "Failed to roll back upload", "public_id", a.PublicID, "error", err)
			}
			if err := s.mediaRepo.Delete(ctx, a.PublicID); err != nil {
				logger.WarnContext(ctx, "Failed to remove rolled back media record", "public_id", a.PublicID, "error", err)
			}
		}(a)
	}
	wg.Wait()
}
