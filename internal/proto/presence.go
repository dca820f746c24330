package proto

// Presence announcement types carried on PresenceTopic.
const (
	PresenceOnline  = "online"
	PresenceUpdate  = "update"
	PresenceOffline = "offline"
)

// PresenceMsg announces a participant's liveness and metadata. Heartbeats are
// PresenceUpdate messages; departure is a best-effort PresenceOffline. A
// participant that dies silently is aged out by the heartbeat timeout instead.
type PresenceMsg struct {
	Type   string       `json:"type"` // online|update|offline
	Device DeviceRecord `json:"device"`
	TS     int64        `json:"ts"`
}
