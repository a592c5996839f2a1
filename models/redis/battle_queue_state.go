package redis

// BattleQueueState is a client's local matchmaking state, cached in Redis so
// a reconnecting client can recover where it was. It is owned exclusively by
// that client; nothing else writes it.
type BattleQueueState struct {
	Username       string `json:"username"`
	QueueStatus    string `json:"queue_status"` // idle|queuing|matched|in_battle|completed
	SessionID      string `json:"session_id,omitempty"`
	BattleType     string `json:"battle_type,omitempty"`
	QueueStartTime int64  `json:"queue_start_time,omitempty"` // Unix timestamp
}
