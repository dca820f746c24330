package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dverbeek/panocast/internal/util"
)

type Config struct {
	Identity Identity `json:"identity"`
	P2P      P2P      `json:"p2p"`
	Presence Presence `json:"presence"`
	Media    Media    `json:"media"`
	Battery  Battery  `json:"battery"`
	Profile  Profile  `json:"profile"`
	Viewer   Viewer   `json:"viewer"`
}

type Identity struct {
	KeyFile string `json:"key_file"`
}

type P2P struct {
	ListenPort int    `json:"listen_port"`
	MdnsTag    string `json:"mdns_tag"`

	// Multiaddrs of peers to dial on startup, for setups where mDNS cannot
	// reach the admin (separate subnets, VPNs).
	BootstrapAddrs []string `json:"bootstrap_addrs"`
}

type Presence struct {
	TTLSec          int `json:"ttl_seconds"`
	HeartbeatSec    int `json:"heartbeat_seconds"`
	OfflineGraceSec int `json:"offline_grace_seconds"`
}

type Media struct {
	// Directory watched for dropped media files. Empty disables the watcher.
	WatchDir string `json:"watch_dir"`

	// Seed the library with the public demo videos on first start (admin only).
	SeedDemo bool `json:"seed_demo"`
}

type Battery struct {
	PollSec      int `json:"poll_seconds"`
	LowThreshold int `json:"low_threshold"`
}

type Profile struct {
	DisplayName string `json:"display_name"`
}

type Viewer struct {
	HTTPAddr string `json:"http_addr"`
	Debug    bool   `json:"debug"`
}

func Default() Config {
	return Config{
		Identity: Identity{
			KeyFile: "data/identity.key",
		},
		P2P: P2P{
			ListenPort: 0,
			MdnsTag:    "panocast-mdns",
		},
		Presence: Presence{
			TTLSec:          60,
			HeartbeatSec:    20,
			OfflineGraceSec: 300,
		},
		Media: Media{
			WatchDir: "media",
			SeedDemo: true,
		},
		Battery: Battery{
			PollSec:      30,
			LowThreshold: 40,
		},
		Profile: Profile{
			DisplayName: "",
		},
		Viewer: Viewer{
			HTTPAddr: "127.0.0.1:0",
			Debug:    false,
		},
	}
}

func (c *Config) Validate() error {
	// Identity
	if strings.TrimSpace(c.Identity.KeyFile) == "" {
		return errors.New("identity.key_file is required")
	}

	// P2P
	if c.P2P.ListenPort < 0 || c.P2P.ListenPort > 65535 {
		return errors.New("p2p.listen_port must be 0..65535")
	}
	if strings.TrimSpace(c.P2P.MdnsTag) == "" {
		return errors.New("p2p.mdns_tag is required")
	}

	// Presence
	if c.Presence.TTLSec <= 0 {
		return errors.New("presence.ttl_seconds must be > 0")
	}
	if c.Presence.HeartbeatSec <= 0 {
		return errors.New("presence.heartbeat_seconds must be > 0")
	}
	if c.Presence.HeartbeatSec >= c.Presence.TTLSec {
		return errors.New("presence.heartbeat_seconds must be < presence.ttl_seconds")
	}
	if c.Presence.OfflineGraceSec <= 0 {
		return errors.New("presence.offline_grace_seconds must be > 0")
	}

	// Battery
	if c.Battery.PollSec <= 0 {
		return errors.New("battery.poll_seconds must be > 0")
	}
	if c.Battery.LowThreshold < 1 || c.Battery.LowThreshold > 100 {
		return errors.New("battery.low_threshold must be 1..100")
	}

	return nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
