package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * 'BattleSession' is one matchmaking unit. Clients queue into a waiting
 * session of their battle type; once enough participants join it flips to
 * in_progress. CreatedAt is the FIFO ordering key for queue search.
 *
 * Status transitions (waiting -> in_progress -> completed, or -> cancelled)
 * are done with conditional updates on the status column so that every
 * client can attempt them redundantly without a distributed lock.
 */
type BattleSession struct {
	ID         string    `gorm:"primaryKey;size:50;not null"`
	BattleType string    `gorm:"size:10;not null;index:idx_battle_sessions_queue"`
	Status     string    `gorm:"size:15;not null;default:'waiting';index:idx_battle_sessions_queue"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP;index"`

	// Relationship with participants in the session
	Participants []*BattleParticipant `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (s *BattleSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
