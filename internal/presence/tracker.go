// Package presence keeps the device roster alive: it announces this
// participant on the presence topic, folds announcements from other
// participants into the roster, ages out silent devices, and carries battery
// telemetry for viewers.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/state"
	"github.com/dverbeek/panocast/internal/transport"
)

// Publisher is the slice of the p2p node the tracker needs.
type Publisher interface {
	PublishPresence(ctx context.Context, data []byte) error
	PresencePeers() []string
}

// Config holds the tracker timings. Zero values take the defaults below.
type Config struct {
	TTL          time.Duration // silence before a device shows as disconnected
	Heartbeat    time.Duration // announce cadence
	OfflineGrace time.Duration // disconnected time before removal
	BatteryPoll  time.Duration // viewer battery sampling cadence
	BatteryLow   int           // percent at or below which to warn once
}

func (c *Config) withDefaults() {
	if c.TTL <= 0 {
		c.TTL = 60 * time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = c.TTL / 3
	}
	if c.OfflineGrace <= 0 {
		c.OfflineGrace = 5 * time.Minute
	}
	if c.BatteryPoll <= 0 {
		c.BatteryPoll = 30 * time.Second
	}
	if c.BatteryLow <= 0 {
		c.BatteryLow = 40
	}
}

// Tracker maintains the roster for one participant.
type Tracker struct {
	pub    Publisher
	table  *state.DeviceTable
	tr     transport.Transport
	cfg    Config
	advise func(string)

	unsub func()

	mu        sync.Mutex
	self      proto.DeviceRecord
	lowWarned bool
}

// New builds a tracker. advise receives operator-facing warnings (low
// battery); nil means they are dropped.
func New(self proto.DeviceRecord, pub Publisher, table *state.DeviceTable, tr transport.Transport, cfg Config, advise func(string)) *Tracker {
	cfg.withDefaults()
	if advise == nil {
		advise = func(string) {}
	}
	return &Tracker{
		pub:    pub,
		table:  table,
		tr:     tr,
		cfg:    cfg,
		advise: advise,
		self:   self,
	}
}

// Run announces this device, then keeps the roster current until ctx is
// cancelled: heartbeats out, announcements in (via HandlePresence), stale
// entries aged, and the roster reconciled against topic membership.
func (t *Tracker) Run(ctx context.Context) {
	t.table.Upsert(t.selfRecord())
	t.announce(ctx, proto.PresenceOnline)

	t.unsub = t.tr.Subscribe(t.handleSync)

	go t.heartbeatLoop(ctx)
	go t.pruneLoop(ctx)
	go t.reconcileLoop(ctx)

	if t.selfRecord().Role == proto.RoleViewer {
		go t.batteryLoop(ctx)
	}
}

// Shutdown sends the best-effort offline announcement and detaches. Safe to
// call with an already-cancelled run context; pass a short fresh one.
func (t *Tracker) Shutdown(ctx context.Context) {
	if t.unsub != nil {
		t.unsub()
		t.unsub = nil
	}
	t.announce(ctx, proto.PresenceOffline)
}

// HandlePresence folds one raw presence payload into the roster. Wire this to
// the node's presence subscription.
func (t *Tracker) HandlePresence(data []byte) {
	var msg proto.PresenceMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("PRESENCE: dropping malformed announcement: %v", err)
		return
	}
	if msg.Device.ID == "" || msg.Device.ID == t.selfID() {
		return
	}

	switch msg.Type {
	case proto.PresenceOnline:
		log.Printf("PRESENCE: %s joined (%s)", displayName(msg.Device), msg.Device.Role)
		t.table.Upsert(msg.Device)
	case proto.PresenceUpdate:
		t.table.Upsert(msg.Device)
	case proto.PresenceOffline:
		log.Printf("PRESENCE: %s left", displayName(msg.Device))
		t.table.Remove(msg.Device.ID)
	default:
		log.Printf("PRESENCE: unknown announcement type %q, ignoring", msg.Type)
	}
}

// handleSync picks device-update messages off the sync transport; everything
// else is the engine's concern.
func (t *Tracker) handleSync(msg proto.Message) {
	rec, ok := msg.Payload.(proto.DeviceRecord)
	if !ok || rec.ID == t.selfID() {
		return
	}
	t.table.Patch(rec)
}

func (t *Tracker) heartbeatLoop(ctx context.Context) {
	tick := time.NewTicker(t.cfg.Heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.table.Touch(t.selfID())
			t.announce(ctx, proto.PresenceUpdate)
		}
	}
}

func (t *Tracker) pruneLoop(ctx context.Context) {
	tick := time.NewTicker(t.cfg.Heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			now := time.Now()
			t.table.PruneStale(now.Add(-t.cfg.TTL), now.Add(-t.cfg.OfflineGrace))
		}
	}
}

func (t *Tracker) reconcileLoop(ctx context.Context) {
	tick := time.NewTicker(t.cfg.TTL)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.Reconcile()
		}
	}
}

// Reconcile installs a roster snapshot built from the current table plus the
// presence topic membership. A meshed peer we hold no record for gets a
// syncing stub; its next heartbeat fills in the metadata. Devices no longer
// meshed are left to the prune cycle rather than dropped immediately, since
// mesh membership lags briefly behind connectivity.
func (t *Tracker) Reconcile() {
	known := t.table.Snapshot()
	recs := make([]proto.DeviceRecord, 0, len(known)+4)
	for _, rec := range known {
		recs = append(recs, rec)
	}
	for _, id := range t.pub.PresencePeers() {
		if id == t.selfID() {
			continue
		}
		if _, ok := known[id]; ok {
			continue
		}
		recs = append(recs, proto.DeviceRecord{
			ID:             id,
			Role:           proto.RoleViewer,
			Status:         proto.StatusSyncing,
			LastSeenMillis: proto.NowMillis(),
		})
	}
	t.table.ReplaceAll(recs)
}

func (t *Tracker) announce(ctx context.Context, typ string) {
	msg := proto.PresenceMsg{Type: typ, Device: t.selfRecord(), TS: proto.NowMillis()}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("PRESENCE: encode announcement: %v", err)
		return
	}
	if err := t.pub.PublishPresence(ctx, data); err != nil {
		log.Printf("PRESENCE: publish %s: %v", typ, err)
	}
}

// ── Battery telemetry ────────────────────────────────────────────────────────

// batteryLoop samples the local battery and distributes readings as
// device-update messages. Hosts without a readable battery opt out silently.
func (t *Tracker) batteryLoop(ctx context.Context) {
	if _, _, err := readBattery(); err != nil {
		log.Printf("PRESENCE: no battery telemetry: %v", err)
		return
	}

	tick := time.NewTicker(t.cfg.BatteryPoll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			level, charging, err := readBattery()
			if err != nil {
				continue
			}
			t.observeBattery(level, charging)
		}
	}
}

// observeBattery records a battery sample on the local device, shares it over
// the sync transport, and warns the operator once per discharge below the
// threshold.
func (t *Tracker) observeBattery(level int, charging bool) {
	t.mu.Lock()
	t.self.BatteryLevel = &level
	t.self.BatteryCharging = &charging
	rec := t.self

	warn := false
	if level <= t.cfg.BatteryLow && !charging {
		if !t.lowWarned {
			t.lowWarned = true
			warn = true
		}
	} else {
		t.lowWarned = false
	}
	t.mu.Unlock()

	t.table.Patch(rec)
	t.tr.Send(proto.New(rec.ID, rec.Role, rec))

	if warn {
		log.Printf("PRESENCE: battery low (%d%%, discharging)", level)
		t.advise(fmt.Sprintf("Battery at %d%% and discharging", level))
	}
}

func (t *Tracker) selfRecord() proto.DeviceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.self
	rec.Status = proto.StatusConnected
	rec.LastSeenMillis = proto.NowMillis()
	return rec
}

func (t *Tracker) selfID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.self.ID
}

func displayName(rec proto.DeviceRecord) string {
	if rec.DisplayName != "" {
		return rec.DisplayName
	}
	return rec.ID
}
