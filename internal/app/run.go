// Package app wires one participant together: identity, p2p node, both
// transports, engine, presence tracker, media ingest, and the local web
// surface. One device directory = one participant.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dverbeek/panocast/internal/config"
	"github.com/dverbeek/panocast/internal/engine"
	"github.com/dverbeek/panocast/internal/media"
	"github.com/dverbeek/panocast/internal/p2p"
	"github.com/dverbeek/panocast/internal/presence"
	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/state"
	"github.com/dverbeek/panocast/internal/storage"
	"github.com/dverbeek/panocast/internal/transport"
	"github.com/dverbeek/panocast/internal/util"
	"github.com/dverbeek/panocast/internal/viewer"
)

type Options struct {
	DeviceDir string
	CfgPath   string
	Cfg       config.Config
	Role      proto.Role

	// Open the console in the system browser once the surface is up.
	OpenBrowser bool
}

func Run(ctx context.Context, opt Options) error {
	logBuf := viewer.NewLogBuffer(800)
	log.SetOutput(io.MultiWriter(os.Stderr, logBuf))

	cfg := opt.Cfg
	logBanner(opt.DeviceDir, opt.CfgPath, opt.Role)

	// ── P2P node
	keyPath := util.ResolvePath(opt.DeviceDir, cfg.Identity.KeyFile)
	node, err := p2p.New(ctx, cfg.P2P.ListenPort, keyPath, cfg.P2P.MdnsTag, cfg.P2P.BootstrapAddrs)
	if err != nil {
		return fmt.Errorf("start p2p node: %w", err)
	}
	defer node.Close()
	log.Printf("device id: %s", node.ID())

	selfName := func() string {
		if cfg.Profile.DisplayName != "" {
			return cfg.Profile.DisplayName
		}
		if h, err := os.Hostname(); err == nil {
			return h
		}
		return ""
	}

	// ── Device cache: seed the roster with devices from previous sessions.
	db, err := storage.Open(opt.DeviceDir)
	if err != nil {
		return fmt.Errorf("open device cache: %w", err)
	}
	defer db.Close()

	devices := state.NewDeviceTable()
	if cached, err := db.ListDevices(); err == nil {
		for _, rec := range cached {
			devices.Seed(rec)
		}
	} else {
		log.Printf("WARNING: device cache unreadable: %v", err)
	}
	go persistRoster(ctx, devices, db)

	// ── Transports: local bus always, networked leg gated on connectivity.
	bus := transport.NewBus()
	defer bus.Close()

	syncTopic, syncSub := node.SyncChannel()
	ps := transport.NewPubSub(ctx, syncTopic, syncSub, node.ID())

	eng := engine.New(node.ID(), opt.Role)
	comp := transport.NewComposite(bus, ps, eng.Online)
	eng.Start(comp)
	defer eng.Close()
	defer comp.Close()

	node.WatchConnectivity(ctx, eng.SetOnline)

	// ── Presence
	tracker := presence.New(proto.DeviceRecord{
		ID:          node.ID(),
		DisplayName: selfName(),
		Role:        opt.Role,
	}, node, devices, comp, presence.Config{
		TTL:          time.Duration(cfg.Presence.TTLSec) * time.Second,
		Heartbeat:    time.Duration(cfg.Presence.HeartbeatSec) * time.Second,
		OfflineGrace: time.Duration(cfg.Presence.OfflineGraceSec) * time.Second,
		BatteryPoll:  time.Duration(cfg.Battery.PollSec) * time.Second,
		BatteryLow:   cfg.Battery.LowThreshold,
	}, eng.Advise)
	tracker.Run(ctx)
	node.RunPresenceLoop(ctx, tracker.HandlePresence)

	// ── Web surface: listener first, so media locators know the bound port.
	ln, err := net.Listen("tcp", cfg.Viewer.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen viewer addr: %w", err)
	}
	baseURL := "http://" + ln.Addr().String()
	httpPort := ln.Addr().(*net.TCPAddr).Port

	// ── Media ingest (admin only)
	mediaDir := ""
	if opt.Role == proto.RoleAdmin && cfg.Media.WatchDir != "" {
		mediaDir = util.ResolvePath(opt.DeviceDir, cfg.Media.WatchDir)
		w, err := media.NewWatcher(mediaDir, func(path string) string {
			lan := node.LANAddr(httpPort)
			if lan == "" {
				return "" // loopback only; the file stays local to this device
			}
			return "http://" + lan + "/media/" + url.PathEscape(filepath.Base(path))
		}, func(d media.Descriptor) {
			eng.AddMedia(d)
		})
		if err != nil {
			log.Printf("WARNING: media watcher disabled: %v", err)
		} else {
			w.Run(ctx)
			log.Printf("watching %s for media drops", mediaDir)
		}
	}

	if opt.Role == proto.RoleAdmin && cfg.Media.SeedDemo {
		seedDemoLibrary(eng)
	}

	go func() {
		if err := viewer.Serve(ln, viewer.Viewer{
			Node:     node,
			Engine:   eng,
			Devices:  devices,
			SelfName: selfName,
			CfgPath:  opt.CfgPath,
			Logs:     logBuf,
			MediaDir: mediaDir,
			BaseURL:  baseURL,
		}); err != nil {
			log.Printf("viewer stopped: %v", err)
		}
	}()
	log.Printf("console: %s", baseURL)

	if opt.OpenBrowser {
		_ = util.OpenURL(baseURL)
	}

	<-ctx.Done()

	// Best-effort departure announcement on a fresh context; the run context
	// is already cancelled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tracker.Shutdown(shutdownCtx)
	log.Printf("offline announced, shutting down")
	return nil
}

// persistRoster mirrors live roster identities into the device cache so the
// next session can show them as known-but-disconnected.
func persistRoster(ctx context.Context, devices *state.DeviceTable, db *storage.DB) {
	ch := devices.Subscribe()
	defer devices.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.Type == "update" && evt.Device != nil && evt.Device.Status == proto.StatusConnected {
				if err := db.UpsertDevice(*evt.Device); err != nil {
					log.Printf("WARNING: device cache write: %v", err)
				}
			}
		}
	}
}

// seedDemoLibrary preloads two public sample videos so a fresh install has
// something to cast before any media is dropped in.
func seedDemoLibrary(eng *engine.Engine) {
	demos := []media.Descriptor{
		{
			Title:           "Big Buck Bunny",
			Locator:         "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
			Kind:            proto.MediaVideo,
			DurationSeconds: 596,
		},
		{
			Title:           "Elephants Dream",
			Locator:         "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/ElephantsDream.mp4",
			Kind:            proto.MediaVideo,
			DurationSeconds: 653,
		},
	}
	for _, d := range demos {
		eng.AddMedia(d)
	}
}

func logBanner(deviceDir, cfgPath string, role proto.Role) {
	log.Println("────────────────────────────────────────")
	log.Printf(" Panocast %s", role)
	log.Printf(" Device folder : %s", deviceDir)
	log.Printf(" Config file   : %s", cfgPath)
	log.Println("")
	log.Println(" This process represents ONE device.")
	log.Println(" Different folder/config = different device.")
	log.Println("────────────────────────────────────────")
}
