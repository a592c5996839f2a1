package controllers

import (
	"PawArena/middleware"
	models "PawArena/models/postgres"
	"PawArena/services/battle"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// resolveUsername maps the JWT email to the caller's username. Every battle
// endpoint needs it; failing here means the request never touches the queue.
func resolveUsername(c *gin.Context, db *gorm.DB) (string, bool) {
	email, err := middleware.JWT_decoder(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found: invalid email"})
		return "", false
	}
	return user.ProfileUsername, true
}

func battleErrorStatus(err error) int {
	switch {
	case errors.Is(err, battle.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, battle.ErrAlreadyQueued),
		errors.Is(err, battle.ErrAlreadyJoined),
		errors.Is(err, battle.ErrSessionFull),
		errors.Is(err, battle.ErrResultExists):
		return http.StatusConflict
	case errors.Is(err, battle.ErrNotQueuing),
		errors.Is(err, battle.ErrNoActiveBattle),
		errors.Is(err, battle.ErrInvalidBattleType):
		return http.StatusBadRequest
	case errors.Is(err, battle.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type joinQueueRequest struct {
	BattleType string  `json:"battle_type" binding:"required"`
	PetID      *string `json:"pet_id"`
}

// @Summary Joins the matchmaking queue
// @Description Puts the user into a waiting battle session of the requested type, creating one if needed
// @Tags battle
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body object{battle_type=string,pet_id=string} true "Battle type (1v1, 2v2, race, coop) and optional pet"
// @Success 200 {object} object{session_id=string,message=string}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/battle/queue [post]
// @Security ApiKeyAuth
func JoinBattleQueue(db *gorm.DB, coordinator *battle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := resolveUsername(c, db)
		if !ok {
			return
		}

		var req joinQueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "battle_type is required"})
			return
		}

		sessionID, err := coordinator.JoinQueue(username, req.BattleType, req.PetID)
		if err != nil {
			log.Printf("[QUEUE] Error joining queue for %s: %v", username, err)
			c.JSON(battleErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"message":    "Joined the battle queue",
		})
	}
}

// @Summary Leaves the matchmaking queue
// @Description Removes the user from their waiting session; the session is cancelled if it becomes empty
// @Tags battle
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/battle/queue [delete]
// @Security ApiKeyAuth
func LeaveBattleQueue(db *gorm.DB, coordinator *battle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := resolveUsername(c, db)
		if !ok {
			return
		}

		if err := coordinator.LeaveQueue(username); err != nil {
			c.JSON(battleErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Left the battle queue"})
	}
}

// @Summary Submits a battle result
// @Description Settles the battle: records the result, completes the session and credits XP to the winner
// @Tags battle
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Param request body object{winner_username=string,loser_username=string,xp_awarded=integer} true "Reported outcome"
// @Success 200 {object} object{session_id=string,xp_awarded=integer,message=string}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/battle/result [post]
// @Security ApiKeyAuth
func SubmitBattleResult(db *gorm.DB, coordinator *battle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := resolveUsername(c, db)
		if !ok {
			return
		}

		var submission battle.ResultSubmission
		if err := c.ShouldBindJSON(&submission); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result payload"})
			return
		}

		result, err := coordinator.SubmitResult(username, submission)
		if err != nil {
			log.Printf("[RESULT] Error submitting result for %s: %v", username, err)
			c.JSON(battleErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": result.SessionID,
			"xp_awarded": result.XPAwarded,
			"message":    "Battle result recorded",
		})
	}
}

// @Summary Battle history of the calling user
// @Description Recent completed battles, newest first, with win/loss counters
// @Tags battle
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{history=array,wins=integer,losses=integer,win_rate=integer}
// @Failure 401 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/battle/history [get]
// @Security ApiKeyAuth
func GetBattleHistory(db *gorm.DB, coordinator *battle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := resolveUsername(c, db)
		if !ok {
			return
		}

		entries, err := coordinator.FetchBattleHistory(username)
		if err != nil {
			log.Printf("[HISTORY] Error fetching history for %s: %v", username, err)
			c.JSON(battleErrorStatus(err), gin.H{"error": "Error retrieving battle history"})
			return
		}

		stats := battle.ComputeHistoryStats(entries)
		c.JSON(http.StatusOK, gin.H{
			"history":  entries,
			"wins":     stats.Wins,
			"losses":   stats.Losses,
			"win_rate": stats.WinRate,
		})
	}
}

// @Summary Current queue status
// @Description Client-local matchmaking state: queue status, elapsed time, current battle and opponent
// @Tags battle
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{queue_status=string,queue_seconds=integer}
// @Failure 401 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/battle/status [get]
// @Security ApiKeyAuth
func GetBattleStatus(db *gorm.DB, coordinator *battle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := resolveUsername(c, db)
		if !ok {
			return
		}

		status, err := coordinator.Status(username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error retrieving queue status"})
			return
		}

		c.JSON(http.StatusOK, status)
	}
}

// @Summary Resets the battle state
// @Description Unconditionally returns the client to idle; used after a battle or to recover from an inconsistent state
// @Tags battle
// @Produce json
// @Param Authorization header string true "Bearer JWT token"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} object{error=string}
// @Router /auth/battle/reset [post]
// @Security ApiKeyAuth
func ResetBattle(db *gorm.DB, coordinator *battle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := resolveUsername(c, db)
		if !ok {
			return
		}

		coordinator.ResetBattle(username)
		c.JSON(http.StatusOK, gin.H{"message": "Battle state reset"})
	}
}
