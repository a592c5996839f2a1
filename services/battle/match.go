package battle

import (
	battle_constants "PawArena/constants/battle"
	models "PawArena/models/postgres"
	"log"
	"time"
)

// PublicProfile is the slice of an opponent's profile shown to other players
type PublicProfile struct {
	Username string `json:"username"`
	Icon     int    `json:"icon"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
}

// checkMatchReady re-derives whether a session has enough participants to
// start and attempts the waiting -> in_progress flip. It runs on every
// participant_joined event and once eagerly after a late join, so it must be
// idempotent: the conditional update in MarkInProgress means only one of the
// racing clients flips the status, and re-running it on an already started
// session is a no-op.
func (c *Coordinator) checkMatchReady(username string, sessionID string) error {
	session, err := c.Store.GetSessionWithParticipants(sessionID)
	if err != nil {
		if err == ErrSessionNotFound {
			return nil
		}
		return err
	}

	if session.Status != battle_constants.SessionWaiting {
		return nil
	}
	if len(session.Participants) < battle_constants.MinParticipants(session.BattleType) {
		return nil
	}

	flipped, err := c.Store.MarkInProgress(sessionID)
	if err != nil {
		return err
	}
	if flipped {
		log.Printf("[MATCH] Session %s is ready, starting battle", sessionID)
		// The status_changed event reaches every subscriber including
		// us, but start our own transition without the round-trip
		c.handleMatchStart(username, sessionID)
	}
	return nil
}

// handleMatchStart moves this client from Queuing to Matched and schedules
// the fixed-delay hop into InBattle. Both the eager path and the event path
// can land here, so a client already past Queuing is left alone.
func (c *Coordinator) handleMatchStart(username string, sessionID string) {
	c.mu.Lock()
	cs := c.clients[username]
	if cs == nil || cs.sessionID != sessionID || cs.status != battle_constants.QueueQueuing {
		c.mu.Unlock()
		return
	}
	cs.status = battle_constants.QueueMatched
	c.mu.Unlock()

	session, err := c.Store.GetSessionWithParticipants(sessionID)
	if err != nil {
		log.Printf("[MATCH] Error fetching matched session %s: %v", sessionID, err)
		return
	}
	opponent := opponentOf(session, username)

	c.saveQueueState(cs)
	c.notify(username, "match_found", map[string]interface{}{
		"session_id":  sessionID,
		"battle_type": session.BattleType,
		"opponent":    opponent,
	})

	// Client-side beat: let the "match found" screen play out before the
	// battle starts. Each matched client runs this independently; a couple
	// of seconds of skew between them is fine.
	timer := time.AfterFunc(battle_constants.MatchedToBattleDelay, func() {
		c.mu.Lock()
		if cs.status != battle_constants.QueueMatched || cs.sessionID != sessionID {
			c.mu.Unlock()
			return
		}
		cs.status = battle_constants.QueueInBattle
		c.mu.Unlock()

		c.saveQueueState(cs)
		c.notify(username, "battle_start", map[string]interface{}{
			"session_id": sessionID,
		})
	})

	c.mu.Lock()
	cs.battleTimer = timer
	c.mu.Unlock()
}

// opponentOf picks the first other participant's public profile. For 2v2 and
// co-op this is simply the first teammate-or-rival to display.
func opponentOf(session *models.BattleSession, username string) *PublicProfile {
	for _, p := range session.Participants {
		if p.Username != username {
			return &PublicProfile{
				Username: p.Username,
				Icon:     p.Profile.UserIcon,
				Level:    p.Profile.Level,
				XP:       p.Profile.XP,
			}
		}
	}
	return nil
}
