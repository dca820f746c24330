package state

import (
	"testing"
	"time"

	"github.com/dverbeek/panocast/internal/proto"
)

func rec(id, name string) proto.DeviceRecord {
	return proto.DeviceRecord{ID: id, DisplayName: name, Role: proto.RoleViewer}
}

func TestUpsertAndSnapshot(t *testing.T) {
	tbl := NewDeviceTable()
	tbl.Upsert(rec("a", "Headset 1"))
	tbl.Upsert(rec("b", "Headset 2"))

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(snap))
	}
	if snap["a"].Status != proto.StatusConnected {
		t.Fatalf("expected connected, got %q", snap["a"].Status)
	}
}

func TestUpsertKeepsBattery(t *testing.T) {
	tbl := NewDeviceTable()
	level := 55
	charging := false
	withBattery := rec("a", "Headset 1")
	withBattery.BatteryLevel = &level
	withBattery.BatteryCharging = &charging
	tbl.Upsert(withBattery)

	// Heartbeat without telemetry must not erase the last reading.
	tbl.Upsert(rec("a", "Headset 1"))

	got, _ := tbl.Get("a")
	if got.BatteryLevel == nil || *got.BatteryLevel != 55 {
		t.Fatalf("battery reading lost: %+v", got)
	}
}

func TestPatchInsertsWhenMissing(t *testing.T) {
	tbl := NewDeviceTable()
	level := 30
	tbl.Patch(proto.DeviceRecord{ID: "ghost", BatteryLevel: &level})

	got, ok := tbl.Get("ghost")
	if !ok {
		t.Fatal("patch should insert missing record")
	}
	if got.BatteryLevel == nil || *got.BatteryLevel != 30 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestReplaceAllIsAuthoritative(t *testing.T) {
	tbl := NewDeviceTable()
	tbl.Upsert(rec("a", "Headset 1"))
	tbl.Upsert(rec("b", "Headset 2"))

	tbl.ReplaceAll([]proto.DeviceRecord{
		{ID: "b", DisplayName: "Headset 2", Role: proto.RoleViewer, Status: proto.StatusConnected},
		{ID: "c", DisplayName: "Headset 3", Role: proto.RoleViewer, Status: proto.StatusConnected},
	})

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 devices after replace, got %d", len(snap))
	}
	if _, ok := snap["a"]; ok {
		t.Fatal("device a should have been discarded by the snapshot")
	}
	if _, ok := snap["c"]; !ok {
		t.Fatal("device c missing after replace")
	}
}

func TestPruneStaleTwoPhase(t *testing.T) {
	tbl := NewDeviceTable()
	tbl.Upsert(rec("a", "Headset 1"))

	// Phase 1: past the TTL the device is marked disconnected, not removed.
	tbl.PruneStale(time.Now().Add(time.Minute), time.Now().Add(-time.Hour))
	got, ok := tbl.Get("a")
	if !ok {
		t.Fatal("device removed too early")
	}
	if got.Status != proto.StatusDisconnected {
		t.Fatalf("expected disconnected, got %q", got.Status)
	}

	// Phase 2: past the grace period it is removed.
	tbl.PruneStale(time.Now().Add(time.Minute), time.Now().Add(time.Minute))
	if _, ok := tbl.Get("a"); ok {
		t.Fatal("device should be removed after grace period")
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	tbl := NewDeviceTable()
	ch := tbl.Subscribe()
	defer tbl.Unsubscribe(ch)

	tbl.Upsert(rec("a", "Headset 1"))

	select {
	case evt := <-ch:
		if evt.Type != "update" || evt.DeviceID != "a" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}
