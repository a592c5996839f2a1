package utils

import (
	models "PawArena/models/postgres"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorHandler handles global errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}

// TimeAgo renders a completion timestamp as a human-relative string for the
// battle history: "just now", minutes, hours, days, then the plain date.
func TimeAgo(t time.Time) string {
	diff := time.Since(t)

	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := int(diff.Hours() / 24)

	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// CheckSessionExists returns the session or an error if it is not there
func CheckSessionExists(db *gorm.DB, sessionID string) (*models.BattleSession, error) {
	var session models.BattleSession
	result := db.Preload("Participants").Where("id = ?", sessionID).First(&session)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("battle session not found")
		}
		return nil, result.Error
	}

	return &session, nil
}

// IsUserInSession checks whether a user has a participant row in a session
func IsUserInSession(db *gorm.DB, sessionID string, username string) (bool, error) {
	var count int64
	err := db.Model(&models.BattleParticipant{}).
		Where("session_id = ? AND username = ?", sessionID, username).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Returns the icon of the user
func UserIcon(db *gorm.DB, username string) int {
	var icon int
	err := db.Model(&models.GameProfile{}).
		Select("user_icon").
		Where("username = ?", username).
		Find(&icon).Error
	if err != nil {
		return 1
	}

	return icon
}
