package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// RegisterMedia serves locally ingested files under /media/{name}. These are
// the targets of the LAN locators announced for drop-directory media.
func RegisterMedia(mux *http.ServeMux, dir string) {
	handleGet(mux, "/media/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/media/")
		name = filepath.Base(name) // flat directory, no traversal
		if name == "" || name == "." {
			http.NotFound(w, r)
			return
		}

		path := filepath.Join(dir, name)
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			http.NotFound(w, r)
			return
		}

		// ServeFile handles Range requests, which video elements rely on for
		// seeking.
		http.ServeFile(w, r, path)
	})
}
