package uploads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/portfolio/pkg/client"
	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
)

const mb = 1024 * 1024

func png(n int) File {
	return File{Name: "a.png", ContentType: "image/png", Data: make([]byte, n)}
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name  string
		file  File
		lim   Limits
		field string
	}{
		{"exactly max", png(10 * mb), Limits{MaxSizeMB: 10}, ""},
		{"one byte over", png(10*mb + 1), Limits{MaxSizeMB: 10}, "size"},
		{"10.01MB", png(10496250), Limits{MaxSizeMB: 10}, "size"},
		{"default max", png(10*mb + 1), Limits{}, "size"},
		{"pdf", File{Name: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, Limits{}, "type"},
		{"webp", File{Name: "a.webp", ContentType: "image/webp", Data: []byte("x")}, Limits{}, ""},
		{"custom allow-list", png(10), Limits{AllowedTypes: []string{"image/jpeg"}}, "type"},
		{"empty", png(0), Limits{}, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.file, tt.lim)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *client.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

// fakeAPI stores uploads by public ID. fail picks filenames to reject.
type fakeAPI struct {
	mu       sync.Mutex
	stored   map[string]bool
	deleted  []string
	requests atomic.Int32
	fail     func(name string) bool
	bare     func(name string) bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload/image":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fh := r.MultipartForm.File["image"][0]
		if f.fail != nil && f.fail(fh.Filename) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"error":"media host down"}`))
			return
		}
		if f.bare != nil && f.bare(fh.Filename) {
			w.Write([]byte(`{"success":true}`))
			return
		}
		folder := r.FormValue("folder")
		if folder == "" {
			folder = "portfolio"
		}
		id := folder + "/" + strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
		f.mu.Lock()
		f.stored[id] = true
		f.mu.Unlock()
		fmt.Fprintf(w, `{"success":true,"image":{"publicId":%q,"url":"http://cdn/%s.png","format":"png","size":%d}}`, id, id, fh.Size)
	case r.Method == http.MethodPost && r.URL.Path == "/upload/multiple":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := len(r.MultipartForm.File["images"])
		imgs := make([]string, n)
		for i := range imgs {
			imgs[i] = fmt.Sprintf(`{"publicId":"portfolio/%d"}`, i)
		}
		fmt.Fprintf(w, `{"success":true,"images":[%s]}`, strings.Join(imgs, ","))
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/upload/"):
		id := strings.TrimPrefix(r.URL.Path, "/upload/")
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.stored[id] {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":"Resource not found"}`))
			return
		}
		delete(f.stored, id)
		f.deleted = append(f.deleted, id)
		w.Write([]byte(`{"success":true,"message":"Image deleted successfully"}`))
	default:
		http.NotFound(w, r)
	}
}

func setup(t *testing.T) (*Service, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{stored: map[string]bool{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(client.New(srv.URL, tokenstore.NewMemory())), api
}

func named(name string, n int) File {
	return File{Name: name, ContentType: "image/png", Data: make([]byte, n)}
}

func TestUploadImage(t *testing.T) {
	s, api := setup(t)
	img, err := s.UploadImage(context.Background(), named("hero.png", 100), Options{Folder: "projects", Quality: 80})
	require.NoError(t, err)
	assert.Equal(t, "projects/hero", img.PublicID)
	assert.Equal(t, int64(100), img.Size)
	assert.True(t, api.stored["projects/hero"])
}

func TestUploadImages_InvalidFileMakesNoRequest(t *testing.T) {
	s, api := setup(t)
	files := []File{named("1.png", 10), named("2.png", 10*mb+1), named("3.png", 10)}

	_, err := s.UploadImages(context.Background(), files, Options{Limits: Limits{MaxSizeMB: 10}})
	var ve *client.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, int32(0), api.requests.Load())
	assert.Empty(t, api.stored)
}

func TestUploadImages_AllOrNothing(t *testing.T) {
	s, api := setup(t)
	api.fail = func(name string) bool { return name == "2.png" }
	files := []File{named("1.png", 10), named("2.png", 10), named("3.png", 10)}

	_, err := s.UploadImages(context.Background(), files, Options{})
	var se *client.ServerError
	require.True(t, errors.As(err, &se))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Empty(t, api.stored, "confirmed uploads of a failed batch are removed")
}

func TestUploadImage_MissingImageInResponse(t *testing.T) {
	s, api := setup(t)
	api.bare = func(string) bool { return true }

	img, err := s.UploadImage(context.Background(), named("hero.png", 10), Options{})
	var se *client.ServerError
	require.True(t, errors.As(err, &se))
	assert.Nil(t, img)
}

func TestUploadImages_MissingImageFailsBatch(t *testing.T) {
	s, api := setup(t)
	api.bare = func(name string) bool { return name == "2.png" }
	files := []File{named("1.png", 10), named("2.png", 10), named("3.png", 10)}

	imgs, err := s.UploadImages(context.Background(), files, Options{})
	var se *client.ServerError
	require.True(t, errors.As(err, &se))
	assert.Nil(t, imgs)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Empty(t, api.stored)
}

func TestUploadImages(t *testing.T) {
	s, api := setup(t)
	files := []File{named("1.png", 10), named("2.png", 10), named("3.png", 10)}

	imgs, err := s.UploadImages(context.Background(), files, Options{Folder: "blog"})
	require.NoError(t, err)
	require.Len(t, imgs, 3)
	for i, img := range imgs {
		assert.Equal(t, fmt.Sprintf("blog/%d", i+1), img.PublicID)
	}
	assert.Len(t, api.stored, 3)
}

func TestUploadMultiple(t *testing.T) {
	s, api := setup(t)
	imgs, err := s.UploadMultiple(context.Background(), []File{named("1.png", 10), named("2.png", 10)}, Options{})
	require.NoError(t, err)
	assert.Len(t, imgs, 2)
	assert.Equal(t, int32(1), api.requests.Load())

	_, err = s.UploadMultiple(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	s, api := setup(t)
	api.stored["portfolio/01abc"] = true

	require.NoError(t, s.Delete(context.Background(), "portfolio/01abc"))
	assert.Equal(t, []string{"portfolio/01abc"}, api.deleted)

	err := s.Delete(context.Background(), "portfolio/01abc")
	var nf *client.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.PNG")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "photo.PNG", f.Name)
	assert.Equal(t, "image/png", f.ContentType)

	noext := filepath.Join(dir, "photo")
	require.NoError(t, os.WriteFile(noext, []byte("GIF89a......"), 0o644))
	f, err = ReadFile(noext)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", f.ContentType)
}

func TestTransformURL(t *testing.T) {
	assert.Equal(t, "http://cdn/a.jpg?fit=cover&h=200&q=80&w=200", ThumbnailURL("http://cdn/a.jpg", 200))
	assert.Equal(t, "http://cdn/a.jpg?v=2&w=640", TransformURL("http://cdn/a.jpg?v=2", Transform{Width: 640}))
	assert.Equal(t, "", TransformURL("", Transform{Width: 1}))
}
