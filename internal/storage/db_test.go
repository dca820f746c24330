package storage

import (
	"testing"

	"github.com/dverbeek/panocast/internal/proto"
)

func TestDeviceCacheRoundTrip(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.UpsertDevice(proto.DeviceRecord{
		ID: "v1", DisplayName: "Hall left", Role: proto.RoleViewer, LastSeenMillis: 100,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertDevice(proto.DeviceRecord{
		ID: "a1", DisplayName: "Console", Role: proto.RoleAdmin, LastSeenMillis: 200,
	}); err != nil {
		t.Fatal(err)
	}

	recs, err := db.ListDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(recs))
	}
	// Most recently seen first.
	if recs[0].ID != "a1" || recs[1].ID != "v1" {
		t.Fatalf("order: %v, %v", recs[0].ID, recs[1].ID)
	}
	if recs[0].Status != proto.StatusDisconnected {
		t.Fatalf("cached devices must load as disconnected, got %v", recs[0].Status)
	}
}

func TestUpsertDeviceKeepsName(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	db.UpsertDevice(proto.DeviceRecord{ID: "v1", DisplayName: "Hall left", Role: proto.RoleViewer, LastSeenMillis: 100})
	// Heartbeat without a name must not blank the stored one.
	db.UpsertDevice(proto.DeviceRecord{ID: "v1", Role: proto.RoleViewer, LastSeenMillis: 300})

	recs, err := db.ListDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].DisplayName != "Hall left" || recs[0].LastSeenMillis != 300 {
		t.Fatalf("unexpected record: %+v", recs)
	}
}

func TestDeleteDevice(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	db.UpsertDevice(proto.DeviceRecord{ID: "v1", Role: proto.RoleViewer})
	if err := db.DeleteDevice("v1"); err != nil {
		t.Fatal(err)
	}
	recs, _ := db.ListDevices()
	if len(recs) != 0 {
		t.Fatalf("device not deleted: %v", recs)
	}

	// Deleting an unknown device is a no-op.
	if err := db.DeleteDevice("ghost"); err != nil {
		t.Fatal(err)
	}
}
