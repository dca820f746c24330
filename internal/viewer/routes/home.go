// internal/viewer/routes/home.go

package routes

import (
	"net/http"

	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/viewer/render"
)

func registerHomeRoutes(mux *http.ServeMux, d Deps) {
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if d.Engine.Role() == proto.RoleAdmin {
			http.Redirect(w, r, "/console", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/player", http.StatusFound)
	})

	// Admin control surface: transport buttons, library, roster.
	mux.HandleFunc("/console", func(w http.ResponseWriter, r *http.Request) {
		vm := render.ConsoleVM{
			BaseVM:  baseVM("Panocast Console", "console", "page.console", d),
			State:   d.Engine.State(),
			Library: d.Engine.Library(),
			Devices: render.BuildDeviceRows(d.Devices.Snapshot()),
			Online:  d.Engine.Online(),
		}
		render.Render(w, vm)
	})

	// Playback screen shown on viewer devices.
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		vm := render.PlayerVM{
			BaseVM:  baseVM("Panocast Player", "player", "page.player", d),
			State:   d.Engine.State(),
			Library: d.Engine.Library(),
		}
		render.Render(w, vm)
	})

	// JSON endpoint for self identity
	handleGet(mux, "/api/self", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id":     d.Node.ID(),
			"name":   safeCall(d.SelfName),
			"role":   d.Engine.Role(),
			"online": d.Engine.Online(),
		})
	})
}
