package battle

import (
	battle_constants "PawArena/constants/battle"
	models "PawArena/models/postgres"
	"PawArena/utils"
	"log"
	"time"
)

// ResultSubmission is what a participant reports when the battle ends.
// Submission is trusted as reported; there is no server-side verification.
type ResultSubmission struct {
	WinnerUsername string  `json:"winner_username"`
	LoserUsername  *string `json:"loser_username"` // nil for co-op
	XPAwarded      int     `json:"xp_awarded"`
}

// SubmitResult settles a battle: one result row, session completed, XP
// credited to the winner. Either participant may call it; the unique index
// on battle_results.session_id rejects the slower submitter with
// ErrResultExists, which is the expected outcome of the double-submit race.
func (c *Coordinator) SubmitResult(username string, submission ResultSubmission) (*models.BattleResult, error) {
	if username == "" {
		return nil, ErrNotAuthenticated
	}

	c.mu.Lock()
	cs := c.clients[username]
	if cs == nil || cs.sessionID == "" ||
		(cs.status != battle_constants.QueueMatched && cs.status != battle_constants.QueueInBattle) {
		c.mu.Unlock()
		return nil, ErrNoActiveBattle
	}
	sessionID := cs.sessionID
	c.mu.Unlock()

	if submission.XPAwarded <= 0 {
		submission.XPAwarded = battle_constants.DefaultXPAwarded
	}

	result := &models.BattleResult{
		SessionID:      sessionID,
		WinnerUsername: submission.WinnerUsername,
		LoserUsername:  submission.LoserUsername,
		XPAwarded:      submission.XPAwarded,
		CompletedAt:    time.Now(),
	}
	if err := c.Store.CreateResult(result); err != nil {
		return nil, err
	}

	if _, err := c.Store.MarkCompleted(sessionID); err != nil {
		log.Printf("[RESULT] Error completing session %s: %v", sessionID, err)
	}

	// Fire-and-forget against the XP ledger: a failed award is logged,
	// not retried
	if submission.WinnerUsername != "" {
		if err := c.Store.AddUserXP(submission.WinnerUsername, submission.XPAwarded); err != nil {
			log.Printf("[RESULT] Error awarding XP for session %s: %v", sessionID, err)
		}
	}

	c.mu.Lock()
	cs.status = battle_constants.QueueCompleted
	c.mu.Unlock()
	c.saveQueueState(cs)
	c.teardownSubscription(cs)

	c.notify(username, "battle_completed", map[string]interface{}{
		"session_id": sessionID,
		"winner":     submission.WinnerUsername,
		"xp_awarded": submission.XPAwarded,
	})

	return result, nil
}

// HistoryEntry is one past battle annotated for display
type HistoryEntry struct {
	SessionID  string         `json:"session_id"`
	BattleType string         `json:"battle_type"`
	IsWinner   bool           `json:"is_winner"`
	Opponent   *PublicProfile `json:"opponent,omitempty"`
	XPAwarded  int            `json:"xp_awarded"`
	TimeAgo    string         `json:"time_ago"`
	Completed  time.Time      `json:"completed_at"`
}

// FetchBattleHistory returns the user's recent completed battles, newest
// first, annotated with the outcome and the other party's public profile
func (c *Coordinator) FetchBattleHistory(username string) ([]HistoryEntry, error) {
	if username == "" {
		return nil, ErrNotAuthenticated
	}

	results, err := c.Store.RecentResults(username, battle_constants.BattleHistoryLimit)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(results))
	for _, r := range results {
		isWinner := r.WinnerUsername == username

		var opponentName string
		if isWinner {
			if r.LoserUsername != nil {
				opponentName = *r.LoserUsername
			}
		} else {
			opponentName = r.WinnerUsername
		}

		var opponent *PublicProfile
		if opponentName != "" {
			profile, err := c.Store.GetProfile(opponentName)
			if err != nil {
				log.Printf("[HISTORY] Error fetching profile %s: %v", opponentName, err)
			} else if profile != nil {
				opponent = &PublicProfile{
					Username: profile.Username,
					Icon:     profile.UserIcon,
					Level:    profile.Level,
					XP:       profile.XP,
				}
			}
		}

		entries = append(entries, HistoryEntry{
			SessionID:  r.SessionID,
			BattleType: r.Session.BattleType,
			IsWinner:   isWinner,
			Opponent:   opponent,
			XPAwarded:  r.XPAwarded,
			TimeAgo:    utils.TimeAgo(r.CompletedAt),
			Completed:  r.CompletedAt,
		})
	}
	return entries, nil
}

// HistoryStats are the derived win/loss counters shown next to the history
type HistoryStats struct {
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
	WinRate int `json:"win_rate"` // percentage, 0 when no battles yet
}

func ComputeHistoryStats(entries []HistoryEntry) HistoryStats {
	stats := HistoryStats{}
	for _, e := range entries {
		if e.IsWinner {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	if len(entries) > 0 {
		// Rounded to the nearest whole percent, not truncated
		stats.WinRate = (stats.Wins*100 + len(entries)/2) / len(entries)
	}
	return stats
}
