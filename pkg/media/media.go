// Package media stores uploaded images on a media host and describes them.
//
// Uploads arrive as base64 data URIs. The Uploader decodes the URI, reads the
// image dimensions, optionally re-encodes to the requested format/quality, and
// writes the bytes to a Host under a generated public ID.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds size limit")
	ErrNotFound        = errors.New("media asset not found")
)

// DefaultFolder is used when an upload names no folder.
const DefaultFolder = "portfolio"

// AllowedTypes is the server-side image allow-list.
var AllowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Host is a place bytes can be stored and later served from.
type Host interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
	Delete(ctx context.Context, key string) error
}

type Asset struct {
	PublicID   string `json:"publicId"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	Size       int64  `json:"size"`
	StorageKey string `json:"-"`
}

type UploadOptions struct {
	Folder  string
	Quality int    // 1-100, 0 keeps the source encoding
	Format  string // jpg or png, empty keeps the source format
}

type Uploader struct {
	host     Host
	maxBytes int64
	now      func() time.Time
}

func NewUploader(host Host, maxBytes int64) *Uploader {
	return &Uploader{host: host, maxBytes: maxBytes, now: time.Now}
}

// Upload stores the image carried by dataURI.
func (u *Uploader) Upload(ctx context.Context, dataURI string, opts UploadOptions) (*Asset, error) {
	contentType, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	ext, ok := AllowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		return nil, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	if target, reencode := reencodeTarget(ext, opts); reencode {
		data, err = transcode(data, target, opts.Quality)
		if err != nil {
			return nil, err
		}
		ext = target
		contentType = mimeFor(ext)
	}

	publicID := path.Join(Folder(opts.Folder), strings.ToLower(ulid.MustNew(ulid.Timestamp(u.now()), ulid.DefaultEntropy()).String()))
	key := publicID + "." + ext

	url, err := u.host.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}

	return &Asset{
		PublicID:   publicID,
		URL:        url,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     ext,
		Size:       int64(len(data)),
		StorageKey: key,
	}, nil
}

// Delete removes a stored object by its storage key.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	return u.host.Delete(ctx, key)
}

// Folder normalizes a caller-supplied folder into slug segments.
func Folder(folder string) string {
	var parts []string
	for _, p := range strings.Split(folder, "/") {
		if s := slug.Make(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return DefaultFolder
	}
	return strings.Join(parts, "/")
}

// SniffType returns the content type of data, normalizing image/jpg.
func SniffType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

func reencodeTarget(ext string, opts UploadOptions) (string, bool) {
	target := strings.ToLower(strings.TrimSpace(opts.Format))
	if target == "jpeg" {
		target = "jpg"
	}
	if target != "jpg" && target != "png" {
		target = ""
	}
	if target == "" && opts.Quality > 0 && ext == "jpg" {
		target = "jpg"
	}
	if target == "" {
		return "", false
	}
	if target == ext && (target == "png" || opts.Quality <= 0) {
		return "", false
	}
	return target, true
}

func transcode(data []byte, ext string, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	switch ext {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func mimeFor(ext string) string {
	switch ext {
	case "jpg":
		return "image/jpeg"
	default:
		return "image/" + ext
	}
}
