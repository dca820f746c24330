package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// registerEventRoutes adds the engine event stream.
//
//	GET /api/events — SSE stream of playback/library/advisory/online events
func registerEventRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		sseHeaders(w)

		ch, cancel := d.Engine.Subscribe()
		defer cancel()

		// Initial snapshot so a reconnecting page starts from current truth.
		snapshot, _ := json.Marshal(map[string]any{
			"state":   d.Engine.State(),
			"library": d.Engine.Library(),
			"online":  d.Engine.Online(),
		})
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
		flusher.Flush()

		heartbeat := time.NewTicker(25 * time.Second)
		defer heartbeat.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			case evt, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(evt)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
				flusher.Flush()
			}
		}
	})
}
