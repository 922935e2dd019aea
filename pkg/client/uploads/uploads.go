// Package uploads sends images to the admin upload endpoints.
//
// Files are checked against size and type limits before any request, so a
// rejected file never reaches the network.
package uploads

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/portfolio/pkg/client"
)

const DefaultMaxSizeMB = 10

var DefaultAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// ReadFile loads path, taking the content type from the extension and
// falling back to sniffing the bytes.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return File{Name: filepath.Base(path), ContentType: ct, Data: data}, nil
}

// Limits bound what ValidateFile accepts. Zero values use the defaults.
type Limits struct {
	MaxSizeMB    float64
	AllowedTypes []string
}

// ValidateFile accepts a file of exactly MaxSizeMB megabytes and rejects one
// byte more.
func ValidateFile(f File, l Limits) error {
	maxMB := l.MaxSizeMB
	if maxMB <= 0 {
		maxMB = DefaultMaxSizeMB
	}
	allowed := l.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}

	fields := map[string]string{}
	if f.Size() == 0 {
		fields["file"] = "File is empty"
	}
	if f.Size() > int64(maxMB*1024*1024) {
		fields["size"] = fmt.Sprintf("File size must be less than %gMB", maxMB)
	}
	if !contains(allowed, strings.ToLower(f.ContentType)) {
		fields["type"] = fmt.Sprintf("File type %q is not allowed. Allowed types: %s", f.ContentType, strings.Join(allowed, ", "))
	}
	if len(fields) == 0 {
		return nil
	}
	return &client.ValidationError{Message: "Invalid file " + f.Name, Fields: fields}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type Options struct {
	Folder  string
	Quality int    // 1-100; 0 keeps the source encoding
	Format  string // jpg or png; empty keeps the source format
	Limits  Limits
}

func (o Options) fields() map[string]string {
	f := map[string]string{"folder": o.Folder, "format": o.Format}
	if o.Quality > 0 {
		f["quality"] = strconv.Itoa(o.Quality)
	}
	return f
}

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
}

type Service struct {
	client *client.Client
}

func New(c *client.Client) *Service {
	return &Service{client: c}
}

func (s *Service) UploadImage(ctx context.Context, f File, opts Options) (*Image, error) {
	if err := s.validate([]File{f}, opts.Limits); err != nil {
		return nil, err
	}
	return s.upload(ctx, f, opts)
}

func (s *Service) upload(ctx context.Context, f File, opts Options) (*Image, error) {
	var resp struct {
		Image *Image `json:"image"`
	}
	part := client.FilePart{Field: "image", Filename: f.Name, ContentType: f.ContentType, Data: f.Data}
	if err := s.client.Upload(ctx, "/upload/image", opts.fields(), []client.FilePart{part}, &resp); err != nil {
		return nil, err
	}
	if resp.Image == nil {
		err := &client.ServerError{Status: http.StatusOK, Message: "response is missing image"}
		s.client.Notify(err)
		return nil, err
	}
	return resp.Image, nil
}

// UploadImages uploads each file in its own request, all at once. Every file
// is validated first; one invalid file fails the batch with no request. If
// any upload fails the images already stored by this call are deleted and
// the first error is returned.
func (s *Service) UploadImages(ctx context.Context, files []File, opts Options) ([]Image, error) {
	if err := s.validate(files, opts.Limits); err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		stored []string
	)
	out := make([]Image, len(files))
	// Uploads already in flight finish even after one fails, so that every
	// stored image is known and can be removed.
	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			img, err := s.upload(ctx, f, opts)
			if err != nil {
				return err
			}
			out[i] = *img
			mu.Lock()
			stored = append(stored, img.PublicID)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		cleanup := context.WithoutCancel(ctx)
		for _, id := range stored {
			s.Delete(cleanup, id)
		}
		return nil, err
	}
	return out, nil
}

// UploadMultiple sends the whole batch in one request.
func (s *Service) UploadMultiple(ctx context.Context, files []File, opts Options) ([]Image, error) {
	if err := s.validate(files, opts.Limits); err != nil {
		return nil, err
	}
	parts := make([]client.FilePart, len(files))
	for i, f := range files {
		parts[i] = client.FilePart{Field: "images", Filename: f.Name, ContentType: f.ContentType, Data: f.Data}
	}

	var resp struct {
		Images []Image `json:"images"`
	}
	if err := s.client.Upload(ctx, "/upload/multiple", opts.fields(), parts, &resp); err != nil {
		return nil, err
	}
	return resp.Images, nil
}

// Delete removes an image. Public IDs keep their folder slashes in the path.
func (s *Service) Delete(ctx context.Context, publicID string) error {
	segs := strings.Split(publicID, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.client.Do(ctx, http.MethodDelete, "/upload/"+strings.Join(segs, "/"), nil, nil)
}

func (s *Service) validate(files []File, l Limits) error {
	if len(files) == 0 {
		err := &client.ValidationError{Message: "No files selected", Fields: map[string]string{"images": "At least one image is required"}}
		s.client.Notify(err)
		return err
	}
	for _, f := range files {
		if err := ValidateFile(f, l); err != nil {
			s.client.Notify(err)
			return err
		}
	}
	return nil
}

// Transform asks the media host for a resized rendition.
type Transform struct {
	Width   int
	Height  int
	Quality int
	Fit     string // cover or contain
}

// TransformURL adds the transform query to an image URL. Zero fields are
// left out; existing query parameters are kept.
func TransformURL(raw string, t Transform) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return raw
	}
	q := u.Query()
	set := func(k string, v int) {
		if v > 0 {
			q.Set(k, strconv.Itoa(v))
		}
	}
	set("w", t.Width)
	set("h", t.Height)
	set("q", t.Quality)
	if t.Fit != "" {
		q.Set("fit", t.Fit)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ThumbnailURL is a square, cropped rendition of size pixels.
func ThumbnailURL(raw string, size int) string {
	return TransformURL(raw, Transform{Width: size, Height: size, Quality: 80, Fit: "cover"})
}
