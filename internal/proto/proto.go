// Package proto defines the sync wire vocabulary shared by every transport.
// Wire format: JSON envelopes; the same five message kinds travel over the
// in-process bus and the GossipSub topic unchanged.
package proto

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SyncTopic is the GossipSub topic carrying sync messages.
	SyncTopic = "panocast.sync.v1"

	// PresenceTopic is the GossipSub topic carrying presence announcements.
	PresenceTopic = "panocast.presence.v1"

	// MdnsTag is the LAN discovery service tag.
	MdnsTag = "panocast-mdns"
)

// Role of a participant. Only the admin mutates playback state.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Kind discriminates the sync message union.
type Kind string

const (
	KindPlaybackState Kind = "playback-state"
	KindVideoAdded    Kind = "video-added"
	KindVideoRemoved  Kind = "video-removed"
	KindRequestState  Kind = "request-state"
	KindDeviceUpdate  Kind = "device-update"
)

// MediaKind distinguishes videos from panoramic images.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// ConnectionStatus of a roster entry.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusSyncing      ConnectionStatus = "syncing"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// PlaybackState is the replicated "now playing" record. RevisionTimestamp is
// the last-writer-wins ordering key: strictly increasing on every admin
// mutation, and viewers discard any inbound state that is not newer.
type PlaybackState struct {
	ActiveMediaID   string  `json:"activeMediaId,omitempty"`
	IsPlaying       bool    `json:"isPlaying"`
	PositionSeconds float64 `json:"positionSeconds"`
	RevisionMillis  int64   `json:"revisionTimestamp"`
}

// MediaItem is one entry of the shared library, unique by ID.
type MediaItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceLocator   string    `json:"sourceLocator"`
	Kind            MediaKind `json:"kind"`
	DurationSeconds float64   `json:"durationSeconds"`
	SizeBytes       int64     `json:"sizeBytes"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DeviceRecord is one entry of the presence roster.
type DeviceRecord struct {
	ID              string           `json:"id"`
	DisplayName     string           `json:"displayName"`
	Role            Role             `json:"role"`
	Status          ConnectionStatus `json:"connectionStatus"`
	LastSeenMillis  int64            `json:"lastSeenAt"`
	BatteryLevel    *int             `json:"batteryLevel,omitempty"`
	BatteryCharging *bool            `json:"batteryCharging,omitempty"`
}

// VideoRemoved names the library entry to drop.
type VideoRemoved struct {
	MediaID string `json:"mediaId"`
}

// RequestState is emitted by a joining viewer; the admin replies with a full
// playback-state plus one video-added per library item.
type RequestState struct{}

// Payload is implemented by exactly the five message payload types, so message
// dispatch is a type switch the compiler can check rather than a string branch.
type Payload interface {
	MessageKind() Kind
}

func (PlaybackState) MessageKind() Kind { return KindPlaybackState }
func (MediaItem) MessageKind() Kind     { return KindVideoAdded }
func (VideoRemoved) MessageKind() Kind  { return KindVideoRemoved }
func (RequestState) MessageKind() Kind  { return KindRequestState }
func (DeviceRecord) MessageKind() Kind  { return KindDeviceUpdate }

// Message is the transport-agnostic envelope. From is the sender's device ID
// and Role its claimed role; both transports fill From from their own identity
// so receivers can drop their own echoes.
type Message struct {
	Type      Kind    `json:"type"`
	Timestamp int64   `json:"timestamp"`
	From      string  `json:"from,omitempty"`
	Role      Role    `json:"role,omitempty"`
	Payload   Payload `json:"payload,omitempty"`
}

// New builds a stamped message around the given payload.
func New(from string, role Role, p Payload) Message {
	return Message{
		Type:      p.MessageKind(),
		Timestamp: NowMillis(),
		From:      from,
		Role:      role,
		Payload:   p,
	}
}

// envelope is the raw JSON shape of Message.
type envelope struct {
	Type      Kind            `json:"type"`
	Timestamp int64           `json:"timestamp"`
	From      string          `json:"from,omitempty"`
	Role      Role            `json:"role,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the envelope with the payload shaped per kind.
func (m Message) MarshalJSON() ([]byte, error) {
	env := envelope{Type: m.Type, Timestamp: m.Timestamp, From: m.From, Role: m.Role}
	if m.Payload != nil {
		b, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, err
		}
		env.Payload = b
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the payload into the concrete variant for the kind.
// An unknown kind is an error: the vocabulary is closed.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	m.Type = env.Type
	m.Timestamp = env.Timestamp
	m.From = env.From
	m.Role = env.Role
	m.Payload = nil

	switch env.Type {
	case KindPlaybackState:
		var p PlaybackState
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode playback-state payload: %w", err)
		}
		m.Payload = p
	case KindVideoAdded:
		var p MediaItem
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode video-added payload: %w", err)
		}
		m.Payload = p
	case KindVideoRemoved:
		var p VideoRemoved
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode video-removed payload: %w", err)
		}
		m.Payload = p
	case KindRequestState:
		m.Payload = RequestState{}
	case KindDeviceUpdate:
		var p DeviceRecord
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode device-update payload: %w", err)
		}
		m.Payload = p
	default:
		return fmt.Errorf("unknown sync message type %q", env.Type)
	}
	return nil
}

// Encode serializes a message for the wire.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a wire message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func NowMillis() int64 { return time.Now().UnixMilli() }
