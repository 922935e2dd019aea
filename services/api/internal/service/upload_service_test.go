package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/media"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: uint8(x), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// failingStore lets the first n uploads through, then fails.
type failingStore struct {
	MediaStore
	allow   int32
	calls   int32
	deleted int32
}

func (f *failingStore) Upload(ctx context.Context, uri string, opts media.UploadOptions) (*media.Asset, error) {
	if atomic.AddInt32(&f.calls, 1) > f.allow {
		return nil, errors.New("media host unavailable")
	}
	return f.MediaStore.Upload(ctx, uri, opts)
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	atomic.AddInt32(&f.deleted, 1)
	return f.MediaStore.Delete(ctx, key)
}

func newUploadSvc(t *testing.T, store MediaStore) (UploadService, *mockMediaRepo, *recordingBus) {
	if store == nil {
		store = media.NewUploader(media.NewLocalHost(t.TempDir(), "/media"), 0)
	}
	repo := newMockMediaRepo()
	bus := &recordingBus{}
	return NewUploadService(store, repo, bus, 1<<20, 3), repo, bus
}

func TestUploadService_UploadAndDelete(t *testing.T) {
	svc, repo, bus := newUploadSvc(t, nil)
	ctx := context.Background()

	a, err := svc.Upload(ctx, "admin-1", domain.UploadFile{Filename: "a.png", ContentType: "application/octet-stream", Data: pngBytes(t, 30, 10)}, domain.UploadOptions{Folder: "projects"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.PublicID, "projects/"))
	assert.Equal(t, 30, a.Width)
	assert.Equal(t, "png", a.Format)
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, bus.count(events.UploadCompleted))

	require.NoError(t, svc.Delete(ctx, "admin-1", a.PublicID))
	assert.Zero(t, repo.count())
	assert.Equal(t, 1, bus.count(events.UploadDeleted))
	assert.ErrorIs(t, svc.Delete(ctx, "admin-1", a.PublicID), domain.ErrNotFound)
}

func TestUploadService_RejectsBeforeStoring(t *testing.T) {
	svc, repo, _ := newUploadSvc(t, nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "", domain.UploadFile{Filename: "doc.pdf", Data: []byte("%PDF-1.4 not an image")}, domain.UploadOptions{})
	assert.ErrorIs(t, err, media.ErrUnsupportedType)

	_, err = svc.Upload(ctx, "", domain.UploadFile{Filename: "big.png", Data: make([]byte, 1<<20+1)}, domain.UploadOptions{})
	assert.ErrorIs(t, err, media.ErrTooLarge)
	assert.Zero(t, repo.count())
}

func TestUploadService_BatchValidatesAllFirst(t *testing.T) {
	store := &failingStore{MediaStore: media.NewUploader(media.NewLocalHost(t.TempDir(), "/media"), 0), allow: 10}
	svc, repo, _ := newUploadSvc(t, store)

	files := []domain.UploadFile{
		{Filename: "1.png", Data: pngBytes(t, 4, 4)},
		{Filename: "2.png", Data: make([]byte, 1<<20+1)},
		{Filename: "3.png", Data: pngBytes(t, 4, 4)},
	}
	_, err := svc.UploadBatch(context.Background(), "admin-1", files, domain.UploadOptions{})
	assert.ErrorIs(t, err, media.ErrTooLarge)
	assert.Contains(t, err.Error(), "2.png")
	assert.Zero(t, atomic.LoadInt32(&store.calls))
	assert.Zero(t, repo.count())
}

func TestUploadService_BatchRollsBack(t *testing.T) {
	store := &failingStore{MediaStore: media.NewUploader(media.NewLocalHost(t.TempDir(), "/media"), 0), allow: 2}
	svc, repo, bus := newUploadSvc(t, store)

	files := []domain.UploadFile{
		{Filename: "1.png", Data: pngBytes(t, 4, 4)},
		{Filename: "2.png", Data: pngBytes(t, 5, 5)},
		{Filename: "3.png", Data: pngBytes(t, 6, 6)},
	}
	_, err := svc.UploadBatch(context.Background(), "admin-1", files, domain.UploadOptions{})
	require.Error(t, err)
	assert.Zero(t, repo.count())
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.deleted))
	assert.Zero(t, bus.count(events.UploadCompleted))
}

func TestUploadService_BatchSuccessAndLimits(t *testing.T) {
	svc, repo, bus := newUploadSvc(t, nil)
	ctx := context.Background()

	files := []domain.UploadFile{
		{Filename: "1.png", Data: pngBytes(t, 4, 4)},
		{Filename: "2.png", Data: pngBytes(t, 8, 8)},
	}
	assets, err := svc.UploadBatch(ctx, "admin-1", files, domain.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, 4, assets[0].Width)
	assert.Equal(t, 8, assets[1].Width)
	assert.Equal(t, 2, repo.count())
	assert.Equal(t, 2, bus.count(events.UploadCompleted))

	_, err = svc.UploadBatch(ctx, "admin-1", make([]domain.UploadFile, 4), domain.UploadOptions{})
	assert.ErrorIs(t, err, domain.ErrTooManyFiles)

	_, err = svc.UploadBatch(ctx, "admin-1", nil, domain.UploadOptions{})
	var verrs domain.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}
