// Package viewer serves the local web surfaces: the admin console, the
// playback screen, and the JSON/SSE/WebSocket APIs they talk to. Everything
// here is presentation; all sync semantics stay in the engine.
package viewer

import (
	"net"
	"net/http"

	"github.com/dverbeek/panocast/internal/engine"
	"github.com/dverbeek/panocast/internal/p2p"
	"github.com/dverbeek/panocast/internal/state"
	"github.com/dverbeek/panocast/internal/viewer/render"
	"github.com/dverbeek/panocast/internal/viewer/routes"
)

type Viewer struct {
	Node    *p2p.Node
	Engine  *engine.Engine
	Devices *state.DeviceTable

	SelfName func() string

	CfgPath string
	Logs    *LogBuffer

	// Directory holding locally ingested media, served under /media/.
	// Empty disables file serving.
	MediaDir string

	// Canonical base URL for templates (e.g. http://127.0.0.1:7900)
	BaseURL string
}

// Serve runs the HTTP surface on an existing listener. The caller opens the
// listener first so it knows the bound port before media locators are built.
func Serve(ln net.Listener, v Viewer) error {
	if err := render.InitTemplates(); err != nil {
		return err
	}

	mux := http.NewServeMux()

	baseURL := v.BaseURL
	if baseURL == "" {
		baseURL = "http://" + ln.Addr().String()
	}

	routes.Register(mux, routes.Deps{
		Node:     v.Node,
		Engine:   v.Engine,
		Devices:  v.Devices,
		SelfName: v.SelfName,
		CfgPath:  v.CfgPath,
		Logs:     v.Logs,
		BaseURL:  baseURL,
	})

	if v.MediaDir != "" {
		routes.RegisterMedia(mux, v.MediaDir)
	}

	return http.Serve(ln, mux)
}
