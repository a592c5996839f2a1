package postgres

import (
	"time"
)

/*
 * 'BattleResult' is the terminal record of a completed session. The unique
 * index on session_id makes settlement exactly-once at the store layer:
 * whichever participant submits second gets a constraint violation instead
 * of a silent duplicate.
 */
type BattleResult struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	SessionID      string    `gorm:"size:50;not null;uniqueIndex:idx_battle_results_session"`
	WinnerUsername string    `gorm:"size:50;not null;index:idx_battle_results_winner"`
	LoserUsername  *string   `gorm:"size:50;index:idx_battle_results_loser"` // nil for co-op sessions
	XPAwarded      int       `gorm:"default:0"`
	CompletedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	Session BattleSession `gorm:"foreignKey:SessionID"`
	Winner  GameProfile   `gorm:"foreignKey:WinnerUsername"`
}
