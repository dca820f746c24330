// Package engine owns the authoritative playback state and media library on
// the admin side, and reconciles replicated state on the viewer side. All
// mutation flows through the operation set; presentation code only invokes
// operations and observes emitted snapshots.
package engine

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dverbeek/panocast/internal/media"
	"github.com/dverbeek/panocast/internal/proto"
	"github.com/dverbeek/panocast/internal/transport"
)

// Event is pushed to engine subscribers (presentation surfaces).
type Event struct {
	Kind     string               `json:"kind"` // playback|library|advisory|online
	State    *proto.PlaybackState `json:"state,omitempty"`
	Library  []proto.MediaItem    `json:"library,omitempty"`
	Advisory string               `json:"advisory,omitempty"`
	Online   *bool                `json:"online,omitempty"`
}

type Engine struct {
	deviceID string
	role     proto.Role

	mu    sync.Mutex
	state proto.PlaybackState
	lib   *Library

	online atomic.Bool

	tr    transport.Transport
	unsub func()

	listenerMu sync.Mutex
	listeners  map[chan Event]struct{}
}

// New creates an engine for the given participant. Call Start to attach the
// transport before invoking operations.
func New(deviceID string, role proto.Role) *Engine {
	return &Engine{
		deviceID:  deviceID,
		role:      role,
		lib:       NewLibrary(),
		listeners: make(map[chan Event]struct{}),
	}
}

// Start attaches the transport and begins applying inbound messages. A viewer
// immediately asks for the current state; if no admin is present the state
// simply stays at defaults, which is not an error.
func (e *Engine) Start(tr transport.Transport) {
	e.tr = tr
	e.unsub = tr.Subscribe(e.handleMessage)
	if e.role == proto.RoleViewer {
		e.RequestState()
	}
}

// Close detaches from the transport and closes all event subscribers.
// Required on teardown: a dangling subscription would keep applying state to
// a dead instance.
func (e *Engine) Close() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.listenerMu.Lock()
	for ch := range e.listeners {
		close(ch)
	}
	e.listeners = nil
	e.listenerMu.Unlock()
}

func (e *Engine) DeviceID() string { return e.deviceID }
func (e *Engine) Role() proto.Role { return e.role }

// SetOnline flips the networked-path flag. The composite transport consults
// Online before attempting the networked leg.
func (e *Engine) SetOnline(v bool) {
	if e.online.Swap(v) != v {
		e.notify(Event{Kind: "online", Online: &v})
	}
}

func (e *Engine) Online() bool { return e.online.Load() }

// State returns the currently applied playback state.
func (e *Engine) State() proto.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Library returns the media collection in insertion order.
func (e *Engine) Library() []proto.MediaItem {
	return e.lib.Items()
}

// ── Admin operations ─────────────────────────────────────────────────────────

func (e *Engine) Play() {
	e.mutate(func(s *proto.PlaybackState) { s.IsPlaying = true })
}

func (e *Engine) Pause() {
	e.mutate(func(s *proto.PlaybackState) { s.IsPlaying = false })
}

// Seek clamps to [0, duration] when the active item's duration is known.
func (e *Engine) Seek(targetSeconds float64) {
	e.mutate(func(s *proto.PlaybackState) {
		if targetSeconds < 0 {
			targetSeconds = 0
		}
		if item, ok := e.lib.Get(s.ActiveMediaID); ok && item.DurationSeconds > 0 && targetSeconds > item.DurationSeconds {
			targetSeconds = item.DurationSeconds
		}
		s.PositionSeconds = targetSeconds
	})
}

// LoadMedia activates a library item. An unknown ID is a silent no-op: the
// caller may be acting on a stale library snapshot and the current state must
// not be cleared for that.
func (e *Engine) LoadMedia(mediaID string) {
	if _, ok := e.lib.Get(mediaID); !ok {
		log.Printf("SYNC: loadMedia %q: not in library, ignoring", mediaID)
		return
	}
	e.mutate(func(s *proto.PlaybackState) {
		s.ActiveMediaID = mediaID
		s.PositionSeconds = 0
		s.IsPlaying = false
	})
}

func (e *Engine) Stop() {
	e.mutate(func(s *proto.PlaybackState) {
		s.ActiveMediaID = ""
		s.PositionSeconds = 0
		s.IsPlaying = false
	})
}

// AddMedia assigns a fresh ID, classifies the locator, and appends the item.
// A video-added delta goes out only for portable locators; a local-only item
// is kept in this participant's library and reported as non-distributable so
// the surface can warn the user.
func (e *Engine) AddMedia(d media.Descriptor) (proto.MediaItem, bool) {
	if !e.isAdmin("addMedia") {
		return proto.MediaItem{}, false
	}

	item := proto.MediaItem{
		ID:              uuid.NewString(),
		Title:           d.Title,
		SourceLocator:   d.Locator,
		Kind:            d.Kind,
		DurationSeconds: d.DurationSeconds,
		SizeBytes:       d.SizeBytes,
		CreatedAt:       nowUTC(),
	}
	e.lib.Add(item)

	portable := media.IsPortable(item.SourceLocator)
	if portable {
		e.send(item)
	} else {
		log.Printf("SYNC: %q has a local-only locator, not announcing", item.Title)
		e.notify(Event{Kind: "advisory", Advisory: "\"" + item.Title + "\" is only playable on this device"})
	}
	e.notify(Event{Kind: "library", Library: e.lib.Items()})
	return item, portable
}

// RemoveMedia drops an item; removing an absent ID is a no-op. The delta is
// broadcast either way — removal is idempotent on every replica.
func (e *Engine) RemoveMedia(id string) {
	if !e.isAdmin("removeMedia") {
		return
	}
	removed := e.lib.Remove(id)
	e.send(proto.VideoRemoved{MediaID: id})
	if removed {
		e.notify(Event{Kind: "library", Library: e.lib.Items()})
	}
}

// RequestState asks the admin for a full snapshot.
func (e *Engine) RequestState() {
	e.send(proto.RequestState{})
}

// ── Inbound handling ─────────────────────────────────────────────────────────

// handleMessage applies one inbound sync message. Dispatch is exhaustive over
// the payload variants; device updates belong to the presence tracker and are
// ignored here.
func (e *Engine) handleMessage(msg proto.Message) {
	if msg.From == e.deviceID {
		return
	}

	switch p := msg.Payload.(type) {
	case proto.PlaybackState:
		e.applyPlaybackState(msg.Role, p)
	case proto.MediaItem:
		e.applyVideoAdded(p)
	case proto.VideoRemoved:
		e.applyVideoRemoved(p)
	case proto.RequestState:
		e.answerStateRequest()
	case proto.DeviceRecord:
		// presence tracker's concern
	}
}

// applyPlaybackState is the last-writer-wins rule: accept only admin-origin
// state whose revision is strictly newer than what we have applied.
func (e *Engine) applyPlaybackState(role proto.Role, p proto.PlaybackState) {
	if e.role == proto.RoleAdmin {
		return // the admin is authoritative, never a replica
	}
	if role != proto.RoleAdmin {
		return
	}

	e.mu.Lock()
	if p.RevisionMillis <= e.state.RevisionMillis {
		e.mu.Unlock()
		log.Printf("SYNC: stale playback-state rev %d <= %d, discarding", p.RevisionMillis, e.state.RevisionMillis)
		return
	}
	e.state = p
	snapshot := e.state
	e.mu.Unlock()

	e.notify(Event{Kind: "playback", State: &snapshot})
}

func (e *Engine) applyVideoAdded(item proto.MediaItem) {
	if e.role == proto.RoleAdmin {
		return
	}
	if e.lib.Add(item) {
		e.notify(Event{Kind: "library", Library: e.lib.Items()})
	}
}

func (e *Engine) applyVideoRemoved(p proto.VideoRemoved) {
	if e.role == proto.RoleAdmin {
		return
	}
	if e.lib.Remove(p.MediaID) {
		e.notify(Event{Kind: "library", Library: e.lib.Items()})
	}
}

// answerStateRequest replays the full current state for a new joiner: the
// playback snapshot plus one video-added per distributable library item.
// Local-only items stay suppressed here too.
func (e *Engine) answerStateRequest() {
	if e.role != proto.RoleAdmin {
		return
	}

	e.mu.Lock()
	snapshot := e.state
	e.mu.Unlock()
	e.send(snapshot)

	for _, item := range e.lib.Items() {
		if media.IsPortable(item.SourceLocator) {
			e.send(item)
		}
	}
}

// ── Internals ────────────────────────────────────────────────────────────────

// mutate applies an admin mutation, stamps a strictly increasing revision,
// and broadcasts the new state.
func (e *Engine) mutate(fn func(*proto.PlaybackState)) {
	if !e.isAdmin("playback mutation") {
		return
	}

	e.mu.Lock()
	fn(&e.state)
	e.state.RevisionMillis = nextRevision(e.state.RevisionMillis)
	snapshot := e.state
	e.mu.Unlock()

	e.send(snapshot)
	e.notify(Event{Kind: "playback", State: &snapshot})
}

// nextRevision stamps wall-clock ms but never repeats or regresses, so rapid
// successive mutations still order correctly.
func nowUTC() time.Time { return time.Now().UTC() }

func nextRevision(current int64) int64 {
	now := proto.NowMillis()
	if now <= current {
		return current + 1
	}
	return now
}

func (e *Engine) isAdmin(op string) bool {
	if e.role != proto.RoleAdmin {
		log.Printf("SYNC: %s requires the admin role, ignoring", op)
		return false
	}
	return true
}

func (e *Engine) send(p proto.Payload) {
	if e.tr == nil {
		return
	}
	e.tr.Send(proto.New(e.deviceID, e.role, p))
}

// Advise pushes a human-readable advisory to every presentation surface.
// Other subsystems (battery telemetry, ingest) use this to warn the operator.
func (e *Engine) Advise(msg string) {
	e.notify(Event{Kind: "advisory", Advisory: msg})
}

// Subscribe returns an event channel for a presentation surface plus a cancel
// func. Slow surfaces drop events rather than block the engine.
func (e *Engine) Subscribe() (ch chan Event, cancel func()) {
	ch = make(chan Event, 32)

	e.listenerMu.Lock()
	if e.listeners != nil {
		e.listeners[ch] = struct{}{}
	}
	e.listenerMu.Unlock()

	cancel = func() {
		e.listenerMu.Lock()
		if _, ok := e.listeners[ch]; ok {
			delete(e.listeners, ch)
			close(ch)
		}
		e.listenerMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) notify(evt Event) {
	e.listenerMu.Lock()
	for ch := range e.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
	e.listenerMu.Unlock()
}
