package engine

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/dverbeek/panocast/internal/media"
	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/transport"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// pairOnBus wires an admin and a viewer engine to one shared local bus, the
// in-process equivalent of two devices on the same channel.
func pairOnBus(t *testing.T) (admin, viewer *Engine) {
	t.Helper()
	bus := transport.NewBus()
	t.Cleanup(func() { bus.Close() })

	admin = New("admin-1", proto.RoleAdmin)
	admin.Start(bus)
	t.Cleanup(admin.Close)

	viewer = New("viewer-1", proto.RoleViewer)
	viewer.Start(bus)
	t.Cleanup(viewer.Close)
	return admin, viewer
}

func portableItem(id, title string, duration float64) proto.MediaItem {
	return proto.MediaItem{
		ID:              id,
		Title:           title,
		SourceLocator:   "https://example.com/" + id + ".mp4",
		Kind:            proto.MediaVideo,
		DurationSeconds: duration,
	}
}

type captureTransport struct {
	mu   sync.Mutex
	sent []proto.Message
}

func (c *captureTransport) Send(msg proto.Message) {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
}

func (c *captureTransport) Subscribe(transport.Handler) (cancel func()) { return func() {} }

func (c *captureTransport) Close() error { return nil }

func (c *captureTransport) byKind(k proto.Kind) []proto.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []proto.Message
	for _, m := range c.sent {
		if m.Type == k {
			out = append(out, m)
		}
	}
	return out
}

func TestAdminMutationsReplicate(t *testing.T) {
	admin, viewer := pairOnBus(t)

	item := portableItem("m1", "Opening reel", 600)
	admin.lib.Add(item)

	admin.LoadMedia("m1")
	admin.Play()
	admin.Seek(42)

	waitFor(t, func() bool {
		s := viewer.State()
		return s.ActiveMediaID == "m1" && s.IsPlaying && s.PositionSeconds == 42
	}, "viewer did not converge on the admin's state")

	if admin.State().RevisionMillis != viewer.State().RevisionMillis {
		t.Fatalf("revisions diverge: %d vs %d", admin.State().RevisionMillis, viewer.State().RevisionMillis)
	}
}

func TestStaleStateDiscarded(t *testing.T) {
	viewer := New("viewer-1", proto.RoleViewer)
	defer viewer.Close()

	apply := func(rev int64, playing bool) {
		viewer.handleMessage(proto.New("admin-1", proto.RoleAdmin, proto.PlaybackState{
			ActiveMediaID: "m1", IsPlaying: playing, RevisionMillis: rev,
		}))
	}

	apply(10, true)
	apply(5, false)  // stale
	apply(10, false) // equal revision is stale too

	s := viewer.State()
	if s.RevisionMillis != 10 || !s.IsPlaying {
		t.Fatalf("stale state applied: %+v", s)
	}
}

func TestShuffledDeliveryConverges(t *testing.T) {
	viewer := New("viewer-1", proto.RoleViewer)
	defer viewer.Close()

	states := make([]proto.PlaybackState, 20)
	for i := range states {
		states[i] = proto.PlaybackState{
			PositionSeconds: float64(i),
			RevisionMillis:  int64(1000 + i),
		}
	}
	rand.New(rand.NewSource(7)).Shuffle(len(states), func(i, j int) {
		states[i], states[j] = states[j], states[i]
	})

	for _, s := range states {
		viewer.handleMessage(proto.New("admin-1", proto.RoleAdmin, s))
	}

	got := viewer.State()
	if got.RevisionMillis != 1019 || got.PositionSeconds != 19 {
		t.Fatalf("did not converge on highest revision: %+v", got)
	}
}

func TestViewerIgnoresNonAdminState(t *testing.T) {
	viewer := New("viewer-1", proto.RoleViewer)
	defer viewer.Close()

	viewer.handleMessage(proto.New("viewer-2", proto.RoleViewer, proto.PlaybackState{
		IsPlaying: true, RevisionMillis: 999,
	}))

	if viewer.State().RevisionMillis != 0 {
		t.Fatal("state from a non-admin sender must be ignored")
	}
}

func TestSeekClamps(t *testing.T) {
	admin := New("admin-1", proto.RoleAdmin)
	defer admin.Close()
	admin.lib.Add(portableItem("m1", "Opening reel", 600))
	admin.LoadMedia("m1")

	admin.Seek(-5)
	if got := admin.State().PositionSeconds; got != 0 {
		t.Fatalf("negative seek: %v", got)
	}

	admin.Seek(700)
	if got := admin.State().PositionSeconds; got != 600 {
		t.Fatalf("overshoot seek: %v", got)
	}

	// Unknown duration: only the lower bound applies.
	admin.lib.Add(proto.MediaItem{ID: "img", SourceLocator: "https://example.com/p.jpg", Kind: proto.MediaImage})
	admin.LoadMedia("img")
	admin.Seek(9999)
	if got := admin.State().PositionSeconds; got != 9999 {
		t.Fatalf("seek with unknown duration clamped: %v", got)
	}
}

func TestLoadUnknownMediaIsNoOp(t *testing.T) {
	admin := New("admin-1", proto.RoleAdmin)
	defer admin.Close()
	admin.lib.Add(portableItem("m1", "Opening reel", 600))
	admin.LoadMedia("m1")
	before := admin.State()

	admin.LoadMedia("no-such-id")

	if got := admin.State(); got != before {
		t.Fatalf("unknown load changed state: %+v", got)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	viewer := New("viewer-1", proto.RoleViewer)
	defer viewer.Close()

	viewer.Play()
	viewer.Seek(10)
	viewer.Stop()

	if got := viewer.State(); got.RevisionMillis != 0 {
		t.Fatalf("viewer mutated state: %+v", got)
	}
	if _, ok := viewer.AddMedia(media.Descriptor{Title: "x", Locator: "https://example.com/x.mp4"}); ok {
		t.Fatal("viewer AddMedia should be refused")
	}
}

func TestRevisionStrictlyIncreases(t *testing.T) {
	admin := New("admin-1", proto.RoleAdmin)
	defer admin.Close()
	admin.lib.Add(portableItem("m1", "Opening reel", 600))

	var last int64
	for i := 0; i < 50; i++ {
		admin.Play()
		rev := admin.State().RevisionMillis
		if rev <= last {
			t.Fatalf("revision regressed: %d after %d", rev, last)
		}
		last = rev
	}
}

func TestNextRevisionAheadOfClock(t *testing.T) {
	future := proto.NowMillis() + 60_000
	if got := nextRevision(future); got != future+1 {
		t.Fatalf("nextRevision(%d) = %d", future, got)
	}
}

func TestNonPortableMediaSuppressed(t *testing.T) {
	tr := &captureTransport{}
	admin := New("admin-1", proto.RoleAdmin)
	admin.Start(tr)
	defer admin.Close()

	events, cancel := admin.Subscribe()
	defer cancel()

	item, portable := admin.AddMedia(media.Descriptor{
		Title: "Local recording", Locator: "/var/media/rec.mp4", Kind: proto.MediaVideo,
	})
	if portable {
		t.Fatal("file path locator reported portable")
	}
	if _, ok := admin.lib.Get(item.ID); !ok {
		t.Fatal("local-only item must still join this device's library")
	}
	if got := tr.byKind(proto.KindVideoAdded); len(got) != 0 {
		t.Fatalf("local-only item was announced: %v", got)
	}

	sawAdvisory := false
	for i := 0; i < 4 && !sawAdvisory; i++ {
		select {
		case evt := <-events:
			sawAdvisory = evt.Kind == "advisory"
		case <-time.After(time.Second):
		}
	}
	if !sawAdvisory {
		t.Fatal("expected an advisory event for a local-only item")
	}
}

func TestPortableMediaAnnounced(t *testing.T) {
	tr := &captureTransport{}
	admin := New("admin-1", proto.RoleAdmin)
	admin.Start(tr)
	defer admin.Close()

	item, portable := admin.AddMedia(media.Descriptor{
		Title: "Opening reel", Locator: "https://example.com/reel.mp4",
		Kind: proto.MediaVideo, DurationSeconds: 600,
	})
	if !portable {
		t.Fatal("https locator reported non-portable")
	}

	added := tr.byKind(proto.KindVideoAdded)
	if len(added) != 1 {
		t.Fatalf("expected one video-added, got %d", len(added))
	}
	sent := added[0].Payload.(proto.MediaItem)
	if sent.ID != item.ID || sent.Title != "Opening reel" {
		t.Fatalf("announced item mismatch: %+v", sent)
	}
}

func TestRemoveMediaAlwaysBroadcasts(t *testing.T) {
	tr := &captureTransport{}
	admin := New("admin-1", proto.RoleAdmin)
	admin.Start(tr)
	defer admin.Close()

	admin.RemoveMedia("never-existed")

	removed := tr.byKind(proto.KindVideoRemoved)
	if len(removed) != 1 {
		t.Fatalf("expected one video-removed, got %d", len(removed))
	}
	if p := removed[0].Payload.(proto.VideoRemoved); p.MediaID != "never-existed" {
		t.Fatalf("payload: %+v", p)
	}
}

func TestBootstrapReplaysPortableLibraryOnly(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()

	admin := New("admin-1", proto.RoleAdmin)
	admin.Start(bus)
	defer admin.Close()

	admin.lib.Add(portableItem("m1", "Opening reel", 600))
	admin.lib.Add(portableItem("m2", "Panorama loop", 0))
	admin.lib.Add(proto.MediaItem{ID: "m3", Title: "Local only", SourceLocator: "/var/media/m3.mp4"})
	admin.LoadMedia("m1")
	admin.Play()

	// The viewer joins late; Start issues the state request.
	viewer := New("viewer-1", proto.RoleViewer)
	viewer.Start(bus)
	defer viewer.Close()

	waitFor(t, func() bool {
		s := viewer.State()
		return s.ActiveMediaID == "m1" && s.IsPlaying && viewer.lib.Len() == 2
	}, "late joiner did not receive the full snapshot")

	if _, ok := viewer.lib.Get("m3"); ok {
		t.Fatal("local-only item leaked into the bootstrap replay")
	}
}

func TestLateJoinScenario(t *testing.T) {
	admin, viewer := pairOnBus(t)

	admin.lib.Add(portableItem("m1", "Opening reel", 600))
	admin.LoadMedia("m1")
	admin.Play()

	waitFor(t, func() bool { return viewer.State().IsPlaying }, "play not applied")

	// A delayed pause from before the play must not win.
	stale := viewer.State()
	stale.IsPlaying = false
	stale.RevisionMillis--
	viewer.handleMessage(proto.New("admin-1", proto.RoleAdmin, stale))

	if !viewer.State().IsPlaying {
		t.Fatal("stale pause overrode newer play")
	}
}

func TestOnlineFlagEvents(t *testing.T) {
	e := New("viewer-1", proto.RoleViewer)
	defer e.Close()

	events, cancel := e.Subscribe()
	defer cancel()

	e.SetOnline(true)
	e.SetOnline(true) // no event for a non-flip

	select {
	case evt := <-events:
		if evt.Kind != "online" || evt.Online == nil || !*evt.Online {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no online event")
	}

	select {
	case evt := <-events:
		t.Fatalf("duplicate online event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
