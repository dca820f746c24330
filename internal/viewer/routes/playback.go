package routes

import (
	"net/http"
)

// registerPlaybackRoutes adds the playback control endpoints.
//
//	GET  /api/state          — current playback state
//	POST /api/playback/play
//	POST /api/playback/pause
//	POST /api/playback/seek  — {"position_seconds": 42.5}
//	POST /api/playback/load  — {"media_id": "..."}
//	POST /api/playback/stop
//
// The engine enforces the admin-only rule; on a viewer these endpoints are
// accepted but have no effect, which keeps the surface identical on both
// roles.
func registerPlaybackRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Engine.State())
	})

	handlePost(mux, "/api/playback/play", func(w http.ResponseWriter, r *http.Request, _ struct{}) {
		d.Engine.Play()
		writeJSON(w, d.Engine.State())
	})

	handlePost(mux, "/api/playback/pause", func(w http.ResponseWriter, r *http.Request, _ struct{}) {
		d.Engine.Pause()
		writeJSON(w, d.Engine.State())
	})

	handlePost(mux, "/api/playback/seek", func(w http.ResponseWriter, r *http.Request, req struct {
		PositionSeconds float64 `json:"position_seconds"`
	}) {
		d.Engine.Seek(req.PositionSeconds)
		writeJSON(w, d.Engine.State())
	})

	handlePost(mux, "/api/playback/load", func(w http.ResponseWriter, r *http.Request, req struct {
		MediaID string `json:"media_id"`
	}) {
		if req.MediaID == "" {
			http.Error(w, "missing media_id", http.StatusBadRequest)
			return
		}
		d.Engine.LoadMedia(req.MediaID)
		writeJSON(w, d.Engine.State())
	})

	handlePost(mux, "/api/playback/stop", func(w http.ResponseWriter, r *http.Request, _ struct{}) {
		d.Engine.Stop()
		writeJSON(w, d.Engine.State())
	})
}
