package handlers

import (
	"PawArena/utils"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"
	"gorm.io/gorm"
)

// Get the current status and participant list of a battle session. Any
// participant can request it to re-derive the full picture instead of
// trusting accumulated events.
func HandleGetSessionInfo(db *gorm.DB, client *socket.Socket,
	username string) func(args ...interface{}) {
	return func(args ...interface{}) {
		log.Printf("[SESSION-INFO] HandleGetSessionInfo iniciado - Usuario: %s, Args: %v",
			username, args)

		if len(args) < 1 {
			client.Emit("error", gin.H{"error": "Missing session id"})
			return
		}

		sessionID, ok := args[0].(string)
		if !ok {
			client.Emit("error", gin.H{"error": "Invalid session id"})
			return
		}

		session, err := utils.CheckSessionExists(db, sessionID)
		if err != nil {
			client.Emit("error", gin.H{"error": "Battle session not found"})
			return
		}

		isIn, err := utils.IsUserInSession(db, sessionID, username)
		if err != nil {
			log.Printf("[SESSION-INFO-ERROR] Database error: %v", err)
			client.Emit("error", gin.H{"error": "Database error"})
			return
		}
		if !isIn {
			client.Emit("error", gin.H{"error": "You are not part of this battle session"})
			return
		}

		var participants []gin.H
		for _, p := range session.Participants {
			participants = append(participants, gin.H{
				"username": p.Username,
				"team":     p.Team,
				"icon":     utils.UserIcon(db, p.Username),
			})
		}

		client.Emit("session_info", gin.H{
			"session_id":   session.ID,
			"battle_type":  session.BattleType,
			"status":       session.Status,
			"participants": participants,
		})
	}
}
