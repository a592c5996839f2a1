package postgres

import (
	"gorm.io/datatypes"
)

/*
 * 'GameProfile' defines the structure for a user's game profile. It is the
 * XP ledger: battle settlement credits XP here. Referenced in User, Pet,
 * BattleParticipant and BattleResult
 */
type GameProfile struct {
	Username  string         `gorm:"primaryKey;size:50;not null"`
	XP        int            `gorm:"default:0"`
	Level     int            `gorm:"default:1"`
	UserStats datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
	UserIcon  int            `gorm:"default:0"`

	// NOTE: no back-reference to User, it creates a circular dependency
	Pets               []Pet               `gorm:"foreignKey:OwnerUsername"`
	BattleParticipants []BattleParticipant `gorm:"foreignKey:Username"`
}
