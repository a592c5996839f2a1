package battle

import (
	battle_constants "PawArena/constants/battle"
	redis_models "PawArena/models/redis"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// fakeStateCache is an in-memory stand-in for the Redis queue state cache.
// Subscriptions deliver nothing; the scenario tests drive the event handlers
// directly instead.
type fakeStateCache struct {
	mu     sync.Mutex
	states map[string]*redis_models.BattleQueueState
}

func newFakeStateCache() *fakeStateCache {
	return &fakeStateCache{states: make(map[string]*redis_models.BattleQueueState)}
}

func (f *fakeStateCache) SaveQueueState(state *redis_models.BattleQueueState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.Username] = state
	return nil
}

func (f *fakeStateCache) GetQueueState(username string) (*redis_models.BattleQueueState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[username], nil
}

func (f *fakeStateCache) DeleteQueueState(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, username)
	return nil
}

func (f *fakeStateCache) SubscribeSession(ctx context.Context, sessionID string) (*goredis.PubSub, <-chan *redis_models.SessionEvent) {
	events := make(chan *redis_models.SessionEvent)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return nil, events
}

type notification struct {
	username string
	event    string
	payload  map[string]interface{}
}

// recordingNotifier captures client pushes instead of emitting over socket.io
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) NotifyUser(username string, event string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{username: username, event: event, payload: payload})
}

func (n *recordingNotifier) eventsFor(username string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var events []string
	for _, s := range n.sent {
		if s.username == username {
			events = append(events, s.event)
		}
	}
	return events
}

func (n *recordingNotifier) payloadFor(username string, event string) map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s.username == username && s.event == event {
			return s.payload
		}
	}
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, sqlmock.Sqlmock, *fakeStateCache, *recordingNotifier) {
	store, mock, _ := newTestStore(t)
	cache := newFakeStateCache()
	notifier := &recordingNotifier{}
	return NewCoordinator(store, cache, notifier), mock, cache, notifier
}

func clientStatusOf(c *Coordinator, username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cs := c.clients[username]; cs != nil {
		return cs.status
	}
	return ""
}

// expectSessionFetch scripts the session read with participants and their
// profiles preloaded
func expectSessionFetch(mock sqlmock.Sqlmock, sessionID string, battleType string, status string, usernames ...string) {
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
			AddRow(sessionID, battleType, status))
	participants := sqlmock.NewRows([]string{"id", "session_id", "username", "team"})
	profiles := sqlmock.NewRows([]string{"username", "xp", "level", "user_icon"})
	for i, u := range usernames {
		team := battle_constants.TeamA
		if i%2 == 1 {
			team = battle_constants.TeamB
		}
		participants.AddRow(i+1, sessionID, u, team)
		profiles.AddRow(u, 100+10*i, 1+i, i)
	}
	mock.ExpectQuery(`SELECT \* FROM "battle_participants"`).WillReturnRows(participants)
	mock.ExpectQuery(`SELECT \* FROM "game_profiles"`).WillReturnRows(profiles)
}

func TestJoinQueueRejectsSelfPairing(t *testing.T) {
	store, mock, _ := newTestStore(t)
	coordinator := NewCoordinator(store, nil, nil)

	// alice is already the sole participant of the oldest waiting session
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
			AddRow("session-1", "1v1", "waiting"))
	mock.ExpectQuery(`SELECT \* FROM "battle_participants"`).
		WithArgs("session-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "username", "team"}).
			AddRow(1, "session-1", "alice", "team_a"))

	mock.ExpectQuery(`SELECT count\(\*\) FROM "battle_participants"`).
		WithArgs("session-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := coordinator.JoinQueue("alice", "1v1", nil)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	// The failed join released its claim on the local machine
	assert.Equal(t, "idle", clientStatusOf(coordinator, "alice"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinQueueWhileAlreadyQueued(t *testing.T) {
	coordinator := NewCoordinator(nil, nil, nil)
	coordinator.clients["alice"] = &clientState{username: "alice", status: "queuing"}

	_, err := coordinator.JoinQueue("alice", "1v1", nil)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestJoinQueueConcurrentSameUser(t *testing.T) {
	coordinator, mock, _, _ := newTestCoordinator(t)

	// The first call sits in the session search while the second arrives
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}))
	mock.ExpectQuery(`INSERT INTO "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO battle_participants`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	firstDone := make(chan error, 1)
	go func() {
		_, err := coordinator.JoinQueue("alice", "1v1", nil)
		firstDone <- err
	}()

	// Wait for the first call to claim the state machine, then try to join
	// again mid-flight; the claim must keep us out of a second session
	assert.Eventually(t, func() bool {
		return clientStatusOf(coordinator, "alice") == battle_constants.QueueQueuing
	}, time.Second, 5*time.Millisecond)

	_, err := coordinator.JoinQueue("alice", "1v1", nil)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	assert.NoError(t, <-firstDone)
	coordinator.CleanupSubscriptions("alice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinQueueHappyPathOneVsOne(t *testing.T) {
	coordinator, mock, _, notifier := newTestCoordinator(t)

	// alice opens the queue: nothing joinable, a fresh session is created
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}))
	mock.ExpectQuery(`INSERT INTO "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO battle_participants`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sessionID, err := coordinator.JoinQueue("alice", "1v1", nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	defer coordinator.CleanupSubscriptions("alice")

	assert.Equal(t, battle_constants.QueueQueuing, clientStatusOf(coordinator, "alice"))

	// bob finds alice's session waiting with a free slot
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
			AddRow(sessionID, "1v1", "waiting"))
	mock.ExpectQuery(`SELECT \* FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "username", "team"}).
			AddRow(1, sessionID, "alice", "team_a"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO battle_participants`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The eager readiness check sees both players and flips the session,
	// then bob's own transition re-reads it for the opponent profile
	expectSessionFetch(mock, sessionID, "1v1", "waiting", "alice", "bob")
	mock.ExpectExec(`UPDATE "battle_sessions" SET "status"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSessionFetch(mock, sessionID, "1v1", "in_progress", "alice", "bob")

	bobSession, err := coordinator.JoinQueue("bob", "1v1", nil)
	assert.NoError(t, err)
	assert.Equal(t, sessionID, bobSession)
	defer coordinator.CleanupSubscriptions("bob")

	assert.Equal(t, battle_constants.QueueMatched, clientStatusOf(coordinator, "bob"))
	assert.Equal(t, []string{"queue_joined", "match_found"}, notifier.eventsFor("bob"))

	// alice's copy of the status change arrives over the event feed
	expectSessionFetch(mock, sessionID, "1v1", "in_progress", "alice", "bob")
	coordinator.handleSessionEvent("alice", &redis_models.SessionEvent{
		Type:      redis_models.EventStatusChanged,
		SessionID: sessionID,
		Status:    battle_constants.SessionInProgress,
	})
	assert.Equal(t, battle_constants.QueueMatched, clientStatusOf(coordinator, "alice"))
	assert.Equal(t, []string{"queue_joined", "match_found"}, notifier.eventsFor("alice"))

	// Battle plays out; bob reports the result
	coordinator.mu.Lock()
	coordinator.clients["bob"].status = battle_constants.QueueInBattle
	coordinator.mu.Unlock()

	mock.ExpectQuery(`INSERT INTO "battle_results"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "battle_sessions" SET "status"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "game_profiles" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	loser := "alice"
	result, err := coordinator.SubmitResult("bob", ResultSubmission{
		WinnerUsername: "bob",
		LoserUsername:  &loser,
	})
	assert.NoError(t, err)
	assert.Equal(t, sessionID, result.SessionID)
	assert.Equal(t, battle_constants.DefaultXPAwarded, result.XPAwarded)
	assert.Equal(t, battle_constants.QueueCompleted, clientStatusOf(coordinator, "bob"))
	assert.Equal(t, []string{"queue_joined", "match_found", "battle_completed"}, notifier.eventsFor("bob"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinQueueRetriesWhenSessionFills(t *testing.T) {
	coordinator, mock, _, _ := newTestCoordinator(t)

	// carol finds a session with one free slot
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
			AddRow("session-1", "1v1", "waiting"))
	mock.ExpectQuery(`SELECT \* FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "username", "team"}).
			AddRow(1, "session-1", "alice", "team_a"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	// A concurrent joiner takes that slot first, the guarded insert comes
	// back empty-handed
	mock.ExpectExec(`INSERT INTO battle_participants`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Second pass: nothing joinable anymore, so a fresh session is created
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}))
	mock.ExpectQuery(`INSERT INTO "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO battle_participants`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sessionID, err := coordinator.JoinQueue("carol", "1v1", nil)
	assert.NoError(t, err)
	assert.NotEqual(t, "session-1", sessionID)
	assert.Equal(t, battle_constants.QueueQueuing, clientStatusOf(coordinator, "carol"))

	coordinator.CleanupSubscriptions("carol")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinQueueGivesUpWhenQueueKeepsFilling(t *testing.T) {
	coordinator, mock, _, _ := newTestCoordinator(t)

	for i := 0; i < maxJoinAttempts; i++ {
		mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
				AddRow("session-1", "1v1", "waiting"))
		mock.ExpectQuery(`SELECT \* FROM "battle_participants"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "username", "team"}).
				AddRow(1, "session-1", "alice", "team_a"))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "battle_participants"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`INSERT INTO battle_participants`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err := coordinator.JoinQueue("carol", "1v1", nil)
	assert.ErrorIs(t, err, ErrSessionFull)
	assert.Equal(t, battle_constants.QueueIdle, clientStatusOf(coordinator, "carol"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinQueueFourthJoinerStartsTwoVsTwo(t *testing.T) {
	coordinator, mock, _, notifier := newTestCoordinator(t)

	// dave finds a 2v2 session already holding three players
	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
			AddRow("session-7", "2v2", "waiting"))
	mock.ExpectQuery(`SELECT \* FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "username", "team"}).
			AddRow(1, "session-7", "alice", "team_a").
			AddRow(2, "session-7", "bob", "team_b").
			AddRow(3, "session-7", "carol", "team_a"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO battle_participants`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Four players is a full 2v2; the readiness check flips the session
	expectSessionFetch(mock, "session-7", "2v2", "waiting", "alice", "bob", "carol", "dave")
	mock.ExpectExec(`UPDATE "battle_sessions" SET "status"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSessionFetch(mock, "session-7", "2v2", "in_progress", "alice", "bob", "carol", "dave")

	sessionID, err := coordinator.JoinQueue("dave", "2v2", nil)
	assert.NoError(t, err)
	assert.Equal(t, "session-7", sessionID)
	defer coordinator.CleanupSubscriptions("dave")

	assert.Equal(t, battle_constants.QueueMatched, clientStatusOf(coordinator, "dave"))

	// dave balances the teams: team_b only had one player
	joined := notifier.payloadFor("dave", "queue_joined")
	if assert.NotNil(t, joined) {
		assert.Equal(t, battle_constants.TeamB, joined["team"])
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveQueueBeforeMatch(t *testing.T) {
	coordinator, mock, cache, notifier := newTestCoordinator(t)
	coordinator.clients["alice"] = &clientState{
		username:  "alice",
		status:    battle_constants.QueueQueuing,
		sessionID: "session-3",
	}

	mock.ExpectQuery(`SELECT .+ FROM "battle_participants" JOIN battle_sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "username"}).
			AddRow(1, "session-3", "alice"))
	mock.ExpectExec(`DELETE FROM "battle_participants"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// alice was the last one in, the session gets cancelled with her
	mock.ExpectQuery(`SELECT count\(\*\) FROM "battle_participants"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE "battle_sessions" SET "status"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := coordinator.LeaveQueue("alice")
	assert.NoError(t, err)
	assert.Equal(t, battle_constants.QueueIdle, clientStatusOf(coordinator, "alice"))
	assert.Equal(t, []string{"queue_left"}, notifier.eventsFor("alice"))

	cached, err := cache.GetQueueState("alice")
	assert.NoError(t, err)
	assert.Nil(t, cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusFallsBackToCachedState(t *testing.T) {
	coordinator, mock, cache, _ := newTestCoordinator(t)

	// Another process matched alice; this one only holds the cached state
	assert.NoError(t, cache.SaveQueueState(&redis_models.BattleQueueState{
		Username:       "alice",
		QueueStatus:    battle_constants.QueueMatched,
		SessionID:      "session-5",
		BattleType:     "1v1",
		QueueStartTime: time.Now().Add(-42 * time.Second).Unix(),
	}))

	expectSessionFetch(mock, "session-5", "1v1", "in_progress", "alice", "bob")

	status, err := coordinator.Status("alice")
	assert.NoError(t, err)
	assert.Equal(t, battle_constants.QueueMatched, status.Status)
	assert.Equal(t, "session-5", status.SessionID)
	assert.GreaterOrEqual(t, status.QueueSeconds, 41)
	assert.NotNil(t, status.CurrentBattle)
	if assert.NotNil(t, status.Opponent) {
		assert.Equal(t, "bob", status.Opponent.Username)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusFallbackWhileQueuing(t *testing.T) {
	coordinator, _, cache, _ := newTestCoordinator(t)

	assert.NoError(t, cache.SaveQueueState(&redis_models.BattleQueueState{
		Username:       "alice",
		QueueStatus:    battle_constants.QueueQueuing,
		SessionID:      "session-5",
		BattleType:     "1v1",
		QueueStartTime: time.Now().Add(-10 * time.Second).Unix(),
	}))

	status, err := coordinator.Status("alice")
	assert.NoError(t, err)
	assert.Equal(t, battle_constants.QueueQueuing, status.Status)
	assert.GreaterOrEqual(t, status.QueueSeconds, 9)
	assert.Nil(t, status.CurrentBattle)
	assert.Nil(t, status.Opponent)
}
