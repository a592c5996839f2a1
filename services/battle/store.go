package battle

import (
	battle_constants "PawArena/constants/battle"
	models "PawArena/models/postgres"
	redis_models "PawArena/models/redis"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// publisher is the slice of the Redis client the store needs: pushing change
// notifications onto a session's channel after every write.
type publisher interface {
	PublishSessionEvent(event *redis_models.SessionEvent) error
}

// Store owns every query against the battle tables. All status transitions
// are conditional updates (UPDATE ... WHERE status = ...) so that any number
// of clients can attempt the same transition and only one takes effect.
type Store struct {
	DB     *gorm.DB
	Events publisher
}

func NewStore(db *gorm.DB, events publisher) *Store {
	return &Store{DB: db, Events: events}
}

// FindJoinableSession returns the oldest waiting session of the given type
// that still has an open slot, or nil when the queue is empty. CreatedAt
// ascending is the FIFO guarantee of the matchmaking queue.
func (s *Store) FindJoinableSession(battleType string) (*models.BattleSession, error) {
	maxP := battle_constants.MaxParticipants(battleType)

	var session models.BattleSession
	err := s.DB.Preload("Participants").
		Where("battle_type = ? AND status = ?", battleType, battle_constants.SessionWaiting).
		Where("id IN (?)", s.DB.Model(&models.BattleSession{}).
			Select("battle_sessions.id").
			Joins("LEFT JOIN battle_participants ON battle_participants.session_id = battle_sessions.id").
			Where("battle_sessions.battle_type = ? AND battle_sessions.status = ?", battleType, battle_constants.SessionWaiting).
			Group("battle_sessions.id").
			Having("COUNT(battle_participants.id) < ?", maxP)).
		Order("created_at ASC").
		Limit(1).
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error searching for joinable session: %v", err)
	}
	return &session, nil
}

// CreateSession inserts a fresh waiting session for a battle type
func (s *Store) CreateSession(battleType string) (*models.BattleSession, error) {
	session := models.BattleSession{
		BattleType: battleType,
		Status:     battle_constants.SessionWaiting,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("error creating battle session: %v", err)
	}
	return &session, nil
}

// GetSessionWithParticipants fetches a session and its participants with
// their public profiles preloaded
func (s *Store) GetSessionWithParticipants(sessionID string) (*models.BattleSession, error) {
	var session models.BattleSession
	err := s.DB.Preload("Participants").Preload("Participants.Profile").
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("error fetching battle session: %v", err)
	}
	return &session, nil
}

// AddParticipant reserves a slot in the session. The capacity check and the
// insert run in a single guarded statement, so two joiners racing for the
// last free slot cannot both get a row in. RowsAffected arbitrates the
// outcome, like the session status transitions. The unique index on
// (session_id, username) turns a double-join by the same user into
// ErrAlreadyJoined.
func (s *Store) AddParticipant(sessionID string, username string, petID *string, team string, maxParticipants int) error {
	res := s.DB.Exec(
		`INSERT INTO battle_participants (session_id, username, pet_id, team, joined_at) `+
			`SELECT ?, ?, ?, ?, CURRENT_TIMESTAMP `+
			`WHERE (SELECT COUNT(*) FROM battle_participants WHERE session_id = ?) < ?`,
		sessionID, username, petID, team, sessionID, maxParticipants)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("error adding participant: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionFull
	}

	s.publish(&redis_models.SessionEvent{
		Type:      redis_models.EventParticipantJoined,
		SessionID: sessionID,
		Username:  username,
	})
	return nil
}

// IsParticipant reports whether the user already has a row in the session
func (s *Store) IsParticipant(sessionID string, username string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.BattleParticipant{}).
		Where("session_id = ? AND username = ?", sessionID, username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error checking participation: %v", err)
	}
	return count > 0, nil
}

// FindWaitingParticipation returns the session id of the user's participant
// row in a session that is still waiting, or "" if there is none
func (s *Store) FindWaitingParticipation(username string) (string, error) {
	var participant models.BattleParticipant
	err := s.DB.
		Joins("JOIN battle_sessions ON battle_sessions.id = battle_participants.session_id").
		Where("battle_participants.username = ? AND battle_sessions.status = ?",
			username, battle_constants.SessionWaiting).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("error finding waiting participation: %v", err)
	}
	return participant.SessionID, nil
}

// RemoveParticipant deletes the user's row from a session (leave-before-match)
func (s *Store) RemoveParticipant(sessionID string, username string) error {
	err := s.DB.
		Where("session_id = ? AND username = ?", sessionID, username).
		Delete(&models.BattleParticipant{}).Error
	if err != nil {
		return fmt.Errorf("error removing participant: %v", err)
	}

	s.publish(&redis_models.SessionEvent{
		Type:      redis_models.EventParticipantLeft,
		SessionID: sessionID,
		Username:  username,
	})
	return nil
}

// CountParticipants returns how many participants a session currently has
func (s *Store) CountParticipants(sessionID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.BattleParticipant{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting participants: %v", err)
	}
	return count, nil
}

// CancelIfEmpty marks a waiting session cancelled when its last participant
// left, so empty sessions never linger in the queue. Returns whether this
// call cancelled it.
func (s *Store) CancelIfEmpty(sessionID string) (bool, error) {
	count, err := s.CountParticipants(sessionID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	return s.CancelSession(sessionID)
}

// CancelSession flips a waiting session to cancelled. Conditional on status
// so a session that raced into in_progress is left alone.
func (s *Store) CancelSession(sessionID string) (bool, error) {
	res := s.DB.Model(&models.BattleSession{}).
		Where("id = ? AND status = ?", sessionID, battle_constants.SessionWaiting).
		Update("status", battle_constants.SessionCancelled)
	if res.Error != nil {
		return false, fmt.Errorf("error cancelling session: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.publish(&redis_models.SessionEvent{
		Type:      redis_models.EventStatusChanged,
		SessionID: sessionID,
		Status:    battle_constants.SessionCancelled,
	})
	return true, nil
}

// MarkInProgress is the waiting -> in_progress compare-and-swap. Every
// client that sees a full session calls this; RowsAffected tells the caller
// whether it was the one that actually flipped it.
func (s *Store) MarkInProgress(sessionID string) (bool, error) {
	res := s.DB.Model(&models.BattleSession{}).
		Where("id = ? AND status = ?", sessionID, battle_constants.SessionWaiting).
		Update("status", battle_constants.SessionInProgress)
	if res.Error != nil {
		return false, fmt.Errorf("error marking session in progress: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.publish(&redis_models.SessionEvent{
		Type:      redis_models.EventStatusChanged,
		SessionID: sessionID,
		Status:    battle_constants.SessionInProgress,
	})
	return true, nil
}

// CreateResult inserts the terminal record of a session. The unique index on
// session_id makes the second submitter get ErrResultExists instead of a
// duplicate row.
func (s *Store) CreateResult(result *models.BattleResult) error {
	if err := s.DB.Create(result).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrResultExists
		}
		return fmt.Errorf("error creating battle result: %v", err)
	}
	return nil
}

// MarkCompleted flips an in_progress session to completed
func (s *Store) MarkCompleted(sessionID string) (bool, error) {
	res := s.DB.Model(&models.BattleSession{}).
		Where("id = ? AND status = ?", sessionID, battle_constants.SessionInProgress).
		Update("status", battle_constants.SessionCompleted)
	if res.Error != nil {
		return false, fmt.Errorf("error marking session completed: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.publish(&redis_models.SessionEvent{
		Type:      redis_models.EventStatusChanged,
		SessionID: sessionID,
		Status:    battle_constants.SessionCompleted,
	})
	return true, nil
}

// AddUserXP credits the winner's profile on the XP ledger. Uses an atomic
// column increment, repeat-safe with respect to concurrent profile writes.
func (s *Store) AddUserXP(username string, amount int) error {
	err := s.DB.Model(&models.GameProfile{}).
		Where("username = ?", username).
		Update("xp", gorm.Expr("xp + ?", amount)).Error
	if err != nil {
		return fmt.Errorf("error awarding XP to %s: %v", username, err)
	}
	return nil
}

// RecentResults returns the newest results involving the user, capped
func (s *Store) RecentResults(username string, limit int) ([]models.BattleResult, error) {
	var results []models.BattleResult
	err := s.DB.Preload("Session").
		Where("winner_username = ? OR loser_username = ?", username, username).
		Order("completed_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching battle history: %v", err)
	}
	return results, nil
}

// GetProfile fetches a user's public game profile
func (s *Store) GetProfile(username string) (*models.GameProfile, error) {
	var profile models.GameProfile
	err := s.DB.Where("username = ?", username).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching profile: %v", err)
	}
	return &profile, nil
}

// StaleWaitingSessions returns waiting sessions created before the cutoff
func (s *Store) StaleWaitingSessions(cutoff time.Time) ([]models.BattleSession, error) {
	var sessions []models.BattleSession
	err := s.DB.
		Where("status = ? AND created_at < ?", battle_constants.SessionWaiting, cutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching stale sessions: %v", err)
	}
	return sessions, nil
}

func (s *Store) publish(event *redis_models.SessionEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishSessionEvent(event); err != nil {
		// Subscribers re-read full state on every event, so a lost
		// notification delays convergence but never corrupts it
		log.Printf("Error publishing session event %s for %s: %v",
			event.Type, event.SessionID, err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
