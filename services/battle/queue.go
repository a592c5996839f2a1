package battle

import (
	battle_constants "PawArena/constants/battle"
	models "PawArena/models/postgres"
	redis_models "PawArena/models/redis"
	"context"
	"log"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Notifier pushes queue transitions to a connected client. The socket.io
// layer implements it; tests plug in a recorder.
type Notifier interface {
	NotifyUser(username string, event string, payload map[string]interface{})
}

// StateCache is the slice of the Redis client the coordinator needs: the
// per-user queue state cache and the session event subscription. Satisfied
// by *redis.RedisClient; tests plug in an in-memory fake.
type StateCache interface {
	SaveQueueState(state *redis_models.BattleQueueState) error
	GetQueueState(username string) (*redis_models.BattleQueueState, error)
	DeleteQueueState(username string) error
	SubscribeSession(ctx context.Context, sessionID string) (*goredis.PubSub, <-chan *redis_models.SessionEvent)
}

// maxJoinAttempts bounds the find-or-create retry when sessions keep filling
// between the search and the guarded insert
const maxJoinAttempts = 3

// Coordinator runs one client-local battle state machine per queued user.
// All matchmaking decisions are re-derived from the store on every event, so
// any number of clients can run the same logic concurrently; the store's
// constraints make the redundant transitions collapse into one.
type Coordinator struct {
	Store    *Store
	Redis    StateCache
	Notifier Notifier

	mu      sync.Mutex
	clients map[string]*clientState
}

// clientState is the non-persisted, client-owned half of the design: the
// Idle -> Queuing -> Matched -> InBattle -> Completed machine plus the
// session subscription that drives it.
type clientState struct {
	username    string
	status      string
	sessionID   string
	battleType  string
	queueStart  time.Time
	pubsub      *goredis.PubSub
	cancelSub   context.CancelFunc
	battleTimer *time.Timer
}

func NewCoordinator(store *Store, redisClient StateCache, notifier Notifier) *Coordinator {
	return &Coordinator{
		Store:    store,
		Redis:    redisClient,
		Notifier: notifier,
		clients:  make(map[string]*clientState),
	}
}

// JoinQueue enters the user into matchmaking for a battle type. It finds the
// oldest waiting session with room or creates a fresh one, inserts the
// participant, flips the local machine to Queuing and opens the session
// subscription. Joining an existing session re-checks match readiness
// eagerly instead of waiting for the event round-trip.
func (c *Coordinator) JoinQueue(username string, battleType string, petID *string) (string, error) {
	if username == "" {
		return "", ErrNotAuthenticated
	}
	if !battle_constants.IsValidBattleType(battleType) {
		return "", ErrInvalidBattleType
	}

	c.mu.Lock()
	cs := c.clients[username]
	if cs != nil && cs.status != battle_constants.QueueIdle {
		c.mu.Unlock()
		return "", ErrAlreadyQueued
	}
	if cs == nil {
		cs = &clientState{username: username}
		c.clients[username] = cs
	}
	// Claim the state machine before touching the store, so a concurrent
	// join by the same user fails the precondition above instead of racing
	// this one into a second session
	cs.status = battle_constants.QueueQueuing
	c.mu.Unlock()

	sessionID, team, joinedExisting, err := c.placeInSession(username, battleType, petID)
	if err != nil {
		c.mu.Lock()
		cs.status = battle_constants.QueueIdle
		c.mu.Unlock()
		return "", err
	}

	c.mu.Lock()
	cs.sessionID = sessionID
	cs.battleType = battleType
	cs.queueStart = time.Now()
	c.mu.Unlock()
	c.saveQueueState(cs)

	c.subscribeToSession(cs, sessionID)

	c.notify(username, "queue_joined", map[string]interface{}{
		"session_id":  sessionID,
		"battle_type": battleType,
		"team":        team,
	})

	if joinedExisting {
		// A late joiner may have just filled the session; don't wait
		// for our own participant_joined event to come back around
		if err := c.checkMatchReady(username, sessionID); err != nil {
			log.Printf("[QUEUE] Error on eager match check for %s: %v", sessionID, err)
		}
	}

	return sessionID, nil
}

// placeInSession finds or creates a session with a free slot and reserves it
// with the store's guarded insert. A session that fills between the search
// and the insert is dropped and the search re-run.
func (c *Coordinator) placeInSession(username string, battleType string, petID *string) (string, string, bool, error) {
	maxSlots := battle_constants.MaxParticipants(battleType)

	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		session, err := c.Store.FindJoinableSession(battleType)
		if err != nil {
			return "", "", false, err
		}

		var sessionID string
		var team string
		isNewSession := session == nil

		if !isNewSession {
			sessionID = session.ID

			// Defensive check against retries and duplicate events; the
			// unique index would catch it anyway
			joined, err := c.Store.IsParticipant(sessionID, username)
			if err != nil {
				return "", "", false, err
			}
			if joined {
				return "", "", false, ErrAlreadyJoined
			}
			team = AssignTeam(session.Participants, battleType)
		} else {
			created, err := c.Store.CreateSession(battleType)
			if err != nil {
				return "", "", false, err
			}
			sessionID = created.ID
			team = battle_constants.TeamA
		}

		err = c.Store.AddParticipant(sessionID, username, petID, team, maxSlots)
		if err == nil {
			return sessionID, team, !isNewSession, nil
		}
		if err == ErrSessionFull && !isNewSession {
			// Lost the last slot to a concurrent joiner; look again
			log.Printf("[QUEUE] Session %s filled before %s got in, retrying", sessionID, username)
			continue
		}
		if isNewSession {
			// Don't leave an orphaned empty session in the queue
			if _, cerr := c.Store.CancelSession(sessionID); cerr != nil {
				log.Printf("[QUEUE] Error cancelling orphaned session %s: %v", sessionID, cerr)
			}
		}
		return "", "", false, err
	}

	return "", "", false, ErrSessionFull
}

// LeaveQueue withdraws the user from matchmaking while still waiting. The
// session is cancelled if the leaver was its last participant.
func (c *Coordinator) LeaveQueue(username string) error {
	if username == "" {
		return ErrNotAuthenticated
	}

	c.mu.Lock()
	cs := c.clients[username]
	if cs == nil || cs.status != battle_constants.QueueQueuing {
		c.mu.Unlock()
		return ErrNotQueuing
	}
	c.mu.Unlock()

	sessionID, err := c.Store.FindWaitingParticipation(username)
	if err != nil {
		return err
	}
	if sessionID != "" {
		if err := c.Store.RemoveParticipant(sessionID, username); err != nil {
			return err
		}
		if _, err := c.Store.CancelIfEmpty(sessionID); err != nil {
			log.Printf("[QUEUE] Error cancelling empty session %s: %v", sessionID, err)
		}
	}

	c.resetClient(cs)
	c.notify(username, "queue_left", map[string]interface{}{})
	return nil
}

// ResetBattle unconditionally returns the client to Idle, tearing down any
// subscription and timers. Used after a completed battle and to recover from
// an inconsistent client state.
func (c *Coordinator) ResetBattle(username string) {
	c.mu.Lock()
	cs := c.clients[username]
	c.mu.Unlock()
	if cs == nil {
		// Still clear any stale cached state from a previous process
		if err := c.Redis.DeleteQueueState(username); err != nil {
			log.Printf("[QUEUE] Error clearing cached state for %s: %v", username, err)
		}
		return
	}
	c.resetClient(cs)
}

// QueueStatus is the read-only snapshot exposed to the UI layer
type QueueStatus struct {
	Status        string                `json:"queue_status"`
	SessionID     string                `json:"session_id,omitempty"`
	BattleType    string                `json:"battle_type,omitempty"`
	QueueSeconds  int                   `json:"queue_seconds"`
	CurrentBattle *models.BattleSession `json:"current_battle,omitempty"`
	Opponent      *PublicProfile        `json:"opponent,omitempty"`
}

// Status reports the user's current client-local state. Falls back to the
// Redis cache when this process holds no in-memory state for the user.
func (c *Coordinator) Status(username string) (*QueueStatus, error) {
	c.mu.Lock()
	cs := c.clients[username]
	c.mu.Unlock()

	if cs == nil || cs.status == battle_constants.QueueIdle {
		cached, err := c.Redis.GetQueueState(username)
		if err != nil {
			return nil, err
		}
		if cached == nil {
			return &QueueStatus{Status: battle_constants.QueueIdle}, nil
		}
		status := &QueueStatus{
			Status:     cached.QueueStatus,
			SessionID:  cached.SessionID,
			BattleType: cached.BattleType,
		}
		if cached.QueueStartTime > 0 {
			status.QueueSeconds = int(time.Since(time.Unix(cached.QueueStartTime, 0)).Seconds())
		}
		if cached.SessionID != "" &&
			(cached.QueueStatus == battle_constants.QueueMatched || cached.QueueStatus == battle_constants.QueueInBattle) {
			session, err := c.Store.GetSessionWithParticipants(cached.SessionID)
			if err == nil {
				status.CurrentBattle = session
				status.Opponent = opponentOf(session, username)
			} else {
				log.Printf("[QUEUE] Error fetching cached battle %s: %v", cached.SessionID, err)
			}
		}
		return status, nil
	}

	status := &QueueStatus{
		Status:     cs.status,
		SessionID:  cs.sessionID,
		BattleType: cs.battleType,
	}
	if !cs.queueStart.IsZero() {
		status.QueueSeconds = int(time.Since(cs.queueStart).Seconds())
	}

	if cs.status == battle_constants.QueueMatched || cs.status == battle_constants.QueueInBattle {
		session, err := c.Store.GetSessionWithParticipants(cs.sessionID)
		if err == nil {
			status.CurrentBattle = session
			status.Opponent = opponentOf(session, username)
		} else {
			log.Printf("[QUEUE] Error fetching current battle %s: %v", cs.sessionID, err)
		}
	}
	return status, nil
}

// subscribeToSession opens the realtime subscription driving this client's
// state machine. A client only ever watches one session; any previous
// subscription is torn down first.
func (c *Coordinator) subscribeToSession(cs *clientState, sessionID string) {
	c.teardownSubscription(cs)

	ctx, cancel := context.WithCancel(context.Background())
	pubsub, events := c.Redis.SubscribeSession(ctx, sessionID)

	c.mu.Lock()
	cs.pubsub = pubsub
	cs.cancelSub = cancel
	c.mu.Unlock()

	go func() {
		for event := range events {
			c.handleSessionEvent(cs.username, event)
		}
	}()
}

// handleSessionEvent reacts to one change notification. Events carry no
// authority: the handlers re-read the session before acting, so duplicated,
// reordered or stale events all converge to the same state.
func (c *Coordinator) handleSessionEvent(username string, event *redis_models.SessionEvent) {
	switch event.Type {
	case redis_models.EventParticipantJoined:
		if err := c.checkMatchReady(username, event.SessionID); err != nil {
			log.Printf("[MATCH] Error checking match for %s: %v", event.SessionID, err)
		}
	case redis_models.EventStatusChanged:
		switch event.Status {
		case battle_constants.SessionInProgress:
			c.handleMatchStart(username, event.SessionID)
		case battle_constants.SessionCancelled:
			// The other side cancelled while we were still waiting
			c.forceIdle(username, event.SessionID)
		}
	}
}

// forceIdle resets the client when its watched session got cancelled
func (c *Coordinator) forceIdle(username string, sessionID string) {
	c.mu.Lock()
	cs := c.clients[username]
	if cs == nil || cs.sessionID != sessionID || cs.status == battle_constants.QueueIdle {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	log.Printf("[QUEUE] Session %s cancelled, resetting %s to idle", sessionID, username)
	c.resetClient(cs)
	c.notify(username, "battle_cancelled", map[string]interface{}{
		"session_id": sessionID,
	})
}

// resetClient is the single path back to Idle: subscription closed, timer
// stopped, cached state dropped
func (c *Coordinator) resetClient(cs *clientState) {
	c.teardownSubscription(cs)

	c.mu.Lock()
	cs.status = battle_constants.QueueIdle
	cs.sessionID = ""
	cs.battleType = ""
	cs.queueStart = time.Time{}
	c.mu.Unlock()

	if err := c.Redis.DeleteQueueState(cs.username); err != nil {
		log.Printf("[QUEUE] Error clearing cached state for %s: %v", cs.username, err)
	}
}

// teardownSubscription closes the pub/sub channel and pending timer. Failing
// to call this on every exit path would leak a live subscription per
// abandoned session.
func (c *Coordinator) teardownSubscription(cs *clientState) {
	c.mu.Lock()
	pubsub := cs.pubsub
	cancel := cs.cancelSub
	timer := cs.battleTimer
	cs.pubsub = nil
	cs.cancelSub = nil
	cs.battleTimer = nil
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			log.Printf("[QUEUE] Error closing subscription for %s: %v", cs.username, err)
		}
	}
}

// CleanupSubscriptions tears down a user's subscription without touching
// session rows; used on socket disconnect
func (c *Coordinator) CleanupSubscriptions(username string) {
	c.mu.Lock()
	cs := c.clients[username]
	c.mu.Unlock()
	if cs != nil {
		c.teardownSubscription(cs)
	}
}

func (c *Coordinator) saveQueueState(cs *clientState) {
	c.mu.Lock()
	state := &redis_models.BattleQueueState{
		Username:    cs.username,
		QueueStatus: cs.status,
		SessionID:   cs.sessionID,
		BattleType:  cs.battleType,
	}
	if !cs.queueStart.IsZero() {
		state.QueueStartTime = cs.queueStart.Unix()
	}
	c.mu.Unlock()

	if err := c.Redis.SaveQueueState(state); err != nil {
		log.Printf("[QUEUE] Error caching queue state for %s: %v", cs.username, err)
	}
}

func (c *Coordinator) notify(username string, event string, payload map[string]interface{}) {
	if c.Notifier == nil {
		return
	}
	c.Notifier.NotifyUser(username, event, payload)
}
