package routes

import (
	"net/http"

	"github.com/dverbeek/panocast/internal/viewer/render"
)

func registerLogsUIRoutes(mux *http.ServeMux, d Deps) {
	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		vm := render.LogsVM{
			BaseVM: baseVM("Logs", "logs", "page.logs", d),
		}
		render.Render(w, vm)
	})
}
