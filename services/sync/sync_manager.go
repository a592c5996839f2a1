package sync

import (
	battle_constants "PawArena/constants/battle"
	"PawArena/services/redis"
	redis_utils "PawArena/services/redis/utils"
	"database/sql"
	"fmt"
)

type SyncManager struct {
	redisClient *redis.RedisClient
	db          *sql.DB
}

// NewSyncManager creates a new instance of the synchronization manager
func NewSyncManager(redisClient *redis.RedisClient, db *sql.DB) *SyncManager {
	return &SyncManager{
		redisClient: redisClient,
		db:          db,
	}
}

// SyncQueueState reconciles the cached matchmaking state of a user against
// the session record in PostgreSQL. PostgreSQL is the ground truth; the Redis
// cache only survives while it agrees with it.
func (sm *SyncManager) SyncQueueState(username string) error {
	// Get cached matchmaking state from Redis
	state, err := sm.redisClient.GetQueueState(username)
	if err != nil {
		return fmt.Errorf("error getting queue state from Redis: %v", err)
	}
	if state == nil || state.QueueStatus == battle_constants.QueueIdle {
		return nil
	}

	if state.SessionID == "" {
		// Cached as active but pointing nowhere. Reset to idle.
		return sm.redisClient.DeleteQueueState(username)
	}

	// Fetch the session status from PostgreSQL
	var status string
	query := `
		SELECT s.status
		FROM battle_sessions s
		JOIN battle_participants p ON p.session_id = s.id
		WHERE s.id = $1 AND p.username = $2
	`
	err = sm.db.QueryRow(query, state.SessionID, username).Scan(&status)
	if err == sql.ErrNoRows {
		// Session gone or user no longer a participant. Reset to idle.
		return sm.redisClient.DeleteQueueState(username)
	}
	if err != nil {
		return fmt.Errorf("error fetching session state from PostgreSQL: %v", err)
	}

	switch status {
	case battle_constants.SessionCompleted, battle_constants.SessionCancelled:
		// The battle is over. Reset the cache to idle.
		return sm.redisClient.DeleteQueueState(username)
	case battle_constants.SessionInProgress:
		if state.QueueStatus == battle_constants.QueueQueuing {
			// The session started while this cache entry lagged behind.
			state.QueueStatus = battle_constants.QueueInBattle
			return sm.redisClient.SaveQueueState(state)
		}
	}

	return nil
}

// SyncSessionParticipants reconciles the cached state of every participant of
// a session. Used after a session reaches a terminal status.
func (sm *SyncManager) SyncSessionParticipants(sessionID string) error {
	rows, err := sm.db.Query(
		`SELECT username FROM battle_participants WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("error fetching session participants from PostgreSQL: %v", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return fmt.Errorf("error scanning participant row: %v", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating participant rows: %v", err)
	}

	for _, username := range usernames {
		if err := sm.SyncQueueState(username); err != nil {
			return fmt.Errorf("error syncing queue state for %s: %v", username, err)
		}
	}

	return nil
}

// CleanupSessionData removes the cached matchmaking state of every
// participant of a finished session in one call.
func (sm *SyncManager) CleanupSessionData(sessionID string) error {
	rows, err := sm.db.Query(
		`SELECT username FROM battle_participants WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("error fetching session participants from PostgreSQL: %v", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return fmt.Errorf("error scanning participant row: %v", err)
		}
		keys = append(keys, redis_utils.FormatQueueStateKey(username))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating participant rows: %v", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := sm.redisClient.CleanupKeys(keys); err != nil {
		return fmt.Errorf("error cleaning Redis queue state keys: %v", err)
	}

	return nil
}
