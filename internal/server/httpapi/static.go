package httpapi

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// spaHandler serves files from dir. Misses on extensionless paths other than
// "/" fall back to index.html so client-side routes resolve.
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" {
		http.NotFound(w, r)
		return
	}

	p := path.Clean("/" + r.URL.Path)
	if p == "/" {
		h.serveIndex(w, r)
		return
	}

	full := filepath.Join(h.dir, filepath.FromSlash(p))
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		http.ServeFile(w, r, full)
		return
	}

	if !strings.Contains(p, ".") {
		h.serveIndex(w, r)
		return
	}
	http.NotFound(w, r)
}

func (h spaHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	full := filepath.Join(h.dir, indexFile)
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}
