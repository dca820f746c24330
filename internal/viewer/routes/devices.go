package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dverbeek/panocast/internal/viewer/render"
)

// registerDeviceRoutes adds the roster endpoints.
//
//	GET /api/devices        — roster rows
//	GET /api/devices/events — SSE stream of roster changes
func registerDeviceRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/devices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, render.BuildDeviceRows(d.Devices.Snapshot()))
	})

	handleGet(mux, "/api/devices/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		sseHeaders(w)

		ch := d.Devices.Subscribe()
		defer d.Devices.Unsubscribe(ch)

		// Send initial snapshot
		snapshotData, _ := json.Marshal(map[string]any{
			"type":    "snapshot",
			"devices": render.BuildDeviceRows(d.Devices.Snapshot()),
		})
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshotData)
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
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
				flusher.Flush()
			}
		}
	})
}
