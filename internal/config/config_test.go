package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty key file", func(c *Config) { c.Identity.KeyFile = " " }},
		{"bad listen port", func(c *Config) { c.P2P.ListenPort = 70000 }},
		{"empty mdns tag", func(c *Config) { c.P2P.MdnsTag = "" }},
		{"zero ttl", func(c *Config) { c.Presence.TTLSec = 0 }},
		{"heartbeat >= ttl", func(c *Config) { c.Presence.HeartbeatSec = c.Presence.TTLSec }},
		{"zero grace", func(c *Config) { c.Presence.OfflineGraceSec = 0 }},
		{"battery threshold", func(c *Config) { c.Battery.LowThreshold = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureCreatesThenLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, created, err := Ensure(path)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first Ensure should create the file")
	}
	if cfg.Presence.TTLSec != 60 {
		t.Fatalf("unexpected default: %+v", cfg.Presence)
	}

	cfg2, created, err := Ensure(path)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second Ensure should load, not create")
	}
	if !reflect.DeepEqual(cfg2, cfg) {
		t.Fatalf("reload mismatch: %+v vs %+v", cfg2, cfg)
	}
}

func TestLoadStripsBOMAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := []byte("\xEF\xBB\xBF" + `{"profile":{"display_name":"Hall left"}}`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Profile.DisplayName != "Hall left" {
		t.Fatalf("display name not loaded: %+v", cfg.Profile)
	}
	// Omitted sections keep their defaults.
	if cfg.Presence.HeartbeatSec != 20 || cfg.Media.WatchDir != "media" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}
