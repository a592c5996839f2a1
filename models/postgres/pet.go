package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * 'Pet' is a user's companion. Battles reference pets optionally: a
 * participant may queue with one of their pets attached
 */
type Pet struct {
	ID            string    `gorm:"primaryKey;size:50;not null"`
	OwnerUsername string    `gorm:"size:50;not null;index:idx_pets_owner"`
	Name          string    `gorm:"size:100;not null"`
	Species       string    `gorm:"size:50"`
	Level         int       `gorm:"default:1"`
	CreatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	Owner GameProfile `gorm:"foreignKey:OwnerUsername"`
}

func (p *Pet) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
