// internal/viewer/routes/register.go
package routes

import (
	"net/http"

	"github.com/dverbeek/panocast/internal/engine"
	"github.com/dverbeek/panocast/internal/p2p"
	"github.com/dverbeek/panocast/internal/state"
)

type Logs interface {
	ServeLogsJSON(w http.ResponseWriter, r *http.Request)
	ServeLogsSSE(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Node    *p2p.Node
	Engine  *engine.Engine
	Devices *state.DeviceTable

	SelfName func() string

	CfgPath string
	Logs    Logs
	BaseURL string
}

func Register(mux *http.ServeMux, d Deps) {
	registerAPILogRoutes(mux, d)

	registerHomeRoutes(mux, d)
	registerPlaybackRoutes(mux, d)
	registerLibraryRoutes(mux, d)
	registerDeviceRoutes(mux, d)
	registerEventRoutes(mux, d)
	registerWSRoutes(mux, d)
	registerLogsUIRoutes(mux, d)
}
