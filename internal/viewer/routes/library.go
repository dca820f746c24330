package routes

import (
	"net/http"
	"strings"

	"github.com/dverbeek/panocast/internal/media"
	"github.com/dverbeek/panocast/internal/proto"
)

// registerLibraryRoutes adds the shared-library endpoints.
//
//	GET    /api/library       — items in insertion order
//	POST   /api/library       — {"title","url","kind"} add by URL (admin)
//	DELETE /api/library/{id}  — remove an item (admin)
func registerLibraryRoutes(mux *http.ServeMux, d Deps) {
	mux.HandleFunc("/api/library", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, d.Engine.Library())
		case http.MethodPost:
			addLibraryItem(w, r, d)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/library/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/library/")
		if id == "" || strings.Contains(id, "/") {
			http.Error(w, "missing media id", http.StatusBadRequest)
			return
		}
		d.Engine.RemoveMedia(id)
		writeJSON(w, map[string]string{"status": "removed", "id": id})
	})
}

func addLibraryItem(w http.ResponseWriter, r *http.Request, d Deps) {
	var req struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Kind  string `json:"kind"` // video|image, guessed from the URL when empty
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}

	kind := proto.MediaKind(req.Kind)
	if kind != proto.MediaVideo && kind != proto.MediaImage {
		if k, ok := media.KindForPath(req.URL); ok {
			kind = k
		} else {
			kind = proto.MediaVideo
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.URL
	}

	item, portable := d.Engine.AddMedia(media.Descriptor{
		Title:   title,
		Locator: req.URL,
		Kind:    kind,
	})
	if item.ID == "" {
		http.Error(w, "adding media requires the admin role", http.StatusForbidden)
		return
	}
	writeJSON(w, map[string]any{"item": item, "portable": portable})
}
