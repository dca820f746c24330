// Package state holds the in-memory presence roster. The roster is a derived
// projection of transport presence events: nothing mutates it directly from
// presentation code.
package state

import (
	"sync"
	"time"

	"github.com/dverbeek/panocast/internal/proto"
)

// DeviceEvent notifies roster subscribers of a change.
type DeviceEvent struct {
	Type     string                        `json:"type"` // update|remove|replace
	DeviceID string                        `json:"device_id,omitempty"`
	Device   *proto.DeviceRecord           `json:"device,omitempty"`
	Devices  map[string]proto.DeviceRecord `json:"devices,omitempty"`
}

// DeviceTable is the live roster of participants keyed by device ID.
type DeviceTable struct {
	mu        sync.Mutex
	devices   map[string]proto.DeviceRecord
	listeners []chan DeviceEvent
}

func NewDeviceTable() *DeviceTable {
	return &DeviceTable{
		devices:   map[string]proto.DeviceRecord{},
		listeners: make([]chan DeviceEvent, 0),
	}
}

// Upsert records a device as freshly seen and connected.
func (t *DeviceTable) Upsert(rec proto.DeviceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec.Status = proto.StatusConnected
	rec.LastSeenMillis = time.Now().UnixMilli()
	if prev, ok := t.devices[rec.ID]; ok {
		// Battery telemetry arrives on a different cadence than heartbeats;
		// keep the last known reading when an update omits it.
		if rec.BatteryLevel == nil {
			rec.BatteryLevel = prev.BatteryLevel
			rec.BatteryCharging = prev.BatteryCharging
		}
		if rec.DisplayName == "" {
			rec.DisplayName = prev.DisplayName
		}
	}
	t.devices[rec.ID] = rec
	t.notifyListeners(DeviceEvent{Type: "update", DeviceID: rec.ID, Device: &rec})
}

// Seed inserts a device known from a previous session as disconnected.
// Existing entries are left untouched.
func (t *DeviceTable) Seed(rec proto.DeviceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.devices[rec.ID]; ok {
		return
	}
	rec.Status = proto.StatusDisconnected
	t.devices[rec.ID] = rec
	t.notifyListeners(DeviceEvent{Type: "update", DeviceID: rec.ID, Device: &rec})
}

// Patch applies a per-device update (battery telemetry etc.), inserting the
// record if it is missing. A missing record is never an error.
func (t *DeviceTable) Patch(rec proto.DeviceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.devices[rec.ID]
	if !ok {
		cur = rec
	}
	if rec.DisplayName != "" {
		cur.DisplayName = rec.DisplayName
	}
	if rec.Role != "" {
		cur.Role = rec.Role
	}
	if rec.Status != "" {
		cur.Status = rec.Status
	}
	if rec.BatteryLevel != nil {
		cur.BatteryLevel = rec.BatteryLevel
		cur.BatteryCharging = rec.BatteryCharging
	}
	cur.LastSeenMillis = time.Now().UnixMilli()
	t.devices[rec.ID] = cur
	t.notifyListeners(DeviceEvent{Type: "update", DeviceID: cur.ID, Device: &cur})
}

// Touch refreshes the liveness stamp without publishing an event.
func (t *DeviceTable) Touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.devices[id]
	if !ok {
		return
	}
	rec.LastSeenMillis = time.Now().UnixMilli()
	rec.Status = proto.StatusConnected
	t.devices[id] = rec
}

// Remove drops a device after an explicit departure.
func (t *DeviceTable) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.devices[id]; !ok {
		return
	}
	delete(t.devices, id)
	t.notifyListeners(DeviceEvent{Type: "remove", DeviceID: id})
}

// ReplaceAll installs an authoritative roster snapshot, discarding everything
// not present in it.
func (t *DeviceTable) ReplaceAll(recs []proto.DeviceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := make(map[string]proto.DeviceRecord, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		if prev, ok := t.devices[rec.ID]; ok {
			if rec.BatteryLevel == nil {
				rec.BatteryLevel = prev.BatteryLevel
				rec.BatteryCharging = prev.BatteryCharging
			}
			if rec.DisplayName == "" {
				rec.DisplayName = prev.DisplayName
			}
		}
		next[rec.ID] = rec
	}
	t.devices = next
	t.notifyListeners(DeviceEvent{Type: "replace", Devices: t.snapshotLocked()})
}

// Get returns a device record by ID.
func (t *DeviceTable) Get(id string) (proto.DeviceRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.devices[id]
	return rec, ok
}

// Snapshot returns a copy of the roster.
func (t *DeviceTable) Snapshot() map[string]proto.DeviceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *DeviceTable) snapshotLocked() map[string]proto.DeviceRecord {
	cp := make(map[string]proto.DeviceRecord, len(t.devices))
	for k, v := range t.devices {
		cp[k] = v
	}
	return cp
}

// PruneStale marks connected devices unseen since ttlCutoff as disconnected,
// then removes disconnected devices unseen since graceCutoff.
func (t *DeviceTable) PruneStale(ttlCutoff, graceCutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.devices {
		last := time.UnixMilli(rec.LastSeenMillis)
		switch rec.Status {
		case proto.StatusDisconnected:
			if last.Before(graceCutoff) {
				delete(t.devices, id)
				t.notifyListeners(DeviceEvent{Type: "remove", DeviceID: id})
			}
		default:
			if last.Before(ttlCutoff) {
				rec.Status = proto.StatusDisconnected
				t.devices[id] = rec
				t.notifyListeners(DeviceEvent{Type: "update", DeviceID: id, Device: &rec})
			}
		}
	}
}

func (t *DeviceTable) Subscribe() chan DeviceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan DeviceEvent, 16)
	t.listeners = append(t.listeners, ch)
	return ch
}

func (t *DeviceTable) Unsubscribe(ch chan DeviceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, listener := range t.listeners {
		if listener == ch {
			close(listener)
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

func (t *DeviceTable) notifyListeners(evt DeviceEvent) {
	for _, ch := range t.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}
