package redis

// Session event types published on a session's pub/sub channel
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventStatusChanged     = "status_changed"
)

// SessionEvent is the change notification delivered to every client
// subscribed to a battle session. Subscribers must not trust the payload as
// the full picture: the coordinator always re-reads the session from
// Postgres before acting, so events arriving out of order stay harmless.
type SessionEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`   // for status_changed
	Username  string `json:"username,omitempty"` // who joined/left
}
