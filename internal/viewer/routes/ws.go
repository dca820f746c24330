package routes

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The player page may be loaded from another LAN host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsPingInterval = 25 * time.Second

// registerWSRoutes adds the WebSocket event feed used by the player page.
// Same payloads as /api/events; WebSocket survives video-element page
// lifecycles better than SSE on some embedded browsers.
func registerWSRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("VIEWER: ws upgrade: %v", err)
			return
		}
		defer conn.Close()

		ch, cancel := d.Engine.Subscribe()
		defer cancel()

		// Reader goroutine: only there to observe the close.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		snapshot := map[string]any{
			"kind":    "snapshot",
			"state":   d.Engine.State(),
			"library": d.Engine.Library(),
			"online":  d.Engine.Online(),
		}
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case <-ping.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			}
		}
	})
}
