// Package spa serves a built single-page app.
package spa

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Handler serves files from dir. Paths that match no file get index.html so
// client-side routes survive a reload. Fingerprinted build output under
// /assets/ or /static/ is cached for a year; index.html is never cached.
func Handler(dir string) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		name := path.Clean("/" + r.URL.Path)
		if name != "/" && name != "/index.html" {
			if f, err := root.Open(name); err == nil {
				st, statErr := f.Stat()
				f.Close()
				if statErr == nil && !st.IsDir() {
					if isFingerprinted(name) {
						w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
					} else {
						w.Header().Set("Cache-Control", "public, max-age=3600")
					}
					files.ServeHTTP(w, r)
					return
				}
			}
			// A missing file with an extension is a broken asset link, not a route.
			if path.Ext(name) != "" {
				http.NotFound(w, r)
				return
			}
		}

		if _, err := os.Stat(index); err != nil {
			http.Error(w, "frontend build not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}

func isFingerprinted(name string) bool {
	return strings.HasPrefix(name, "/assets/") || strings.HasPrefix(name, "/static/")
}
