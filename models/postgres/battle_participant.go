package postgres

import (
	"time"
)

/*
 * 'BattleParticipant' is one user's membership in a battle session, tagged
 * with a team. The composite unique index on (session_id, username) is what
 * keeps a user from double-joining the same session no matter how many
 * concurrent join calls race against each other.
 */
type BattleParticipant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"size:50;not null;uniqueIndex:idx_battle_participants_session_user"`
	Username  string    `gorm:"size:50;not null;uniqueIndex:idx_battle_participants_session_user"`
	PetID     *string   `gorm:"size:50"`
	Team      string    `gorm:"size:10;not null"`
	JoinedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	Profile GameProfile `gorm:"foreignKey:Username;references:Username"`
	Pet     *Pet        `gorm:"foreignKey:PetID"`
}
