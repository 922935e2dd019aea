package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// maxTransformEdge bounds the width/height a resize request may ask for.
const maxTransformEdge = 2560

// LocalHost stores media on disk under dir and serves it from baseURL.
type LocalHost struct {
	dir     string
	baseURL string
}

func NewLocalHost(dir, baseURL string) *LocalHost {
	return &LocalHost{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *LocalHost) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	full, err := h.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move file: %w", err)
	}
	return h.baseURL + "/" + key, nil
}

func (h *LocalHost) Delete(_ context.Context, key string) error {
	full, err := h.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (h *LocalHost) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(h.dir, filepath.FromSlash(clean)), nil
}

// Handler serves stored media. The query parameters w, h, q and fit
// (cover|contain) resize JPEG and PNG images on the fly; other formats are
// served as stored.
func (h *LocalHost) Handler(prefix string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(h.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, prefix)
		t, ok := parseTransform(r)
		ext := strings.ToLower(filepath.Ext(key))
		if !ok || (ext != ".jpg" && ext != ".png") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			files.ServeHTTP(w, r)
			return
		}

		full, err := h.path(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		data, err := t.apply(full, ext)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to transform image", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", mimeFor(strings.TrimPrefix(ext, ".")))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(data))
	})
}

type transform struct {
	width, height, quality int
	fit                    string
}

func parseTransform(r *http.Request) (transform, bool) {
	q := r.URL.Query()
	t := transform{
		width:   clampInt(q.Get("w"), maxTransformEdge),
		height:  clampInt(q.Get("h"), maxTransformEdge),
		quality: clampInt(q.Get("q"), 100),
		fit:     q.Get("fit"),
	}
	return t, t.width > 0 || t.height > 0 || t.quality > 0
}

func (t transform) apply(file, ext string) ([]byte, error) {
	img, err := imaging.Open(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	switch {
	case t.width > 0 && t.height > 0 && t.fit == "cover":
		img = imaging.Fill(img, t.width, t.height, imaging.Center, imaging.Lanczos)
	case t.width > 0 && t.height > 0:
		img = imaging.Fit(img, t.width, t.height, imaging.Lanczos)
	case t.width > 0 || t.height > 0:
		img = imaging.Resize(img, t.width, t.height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if ext == ".png" {
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		quality := t.quality
		if quality == 0 {
			quality = 85
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	return buf.Bytes(), err
}

func clampInt(s string, max int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}
