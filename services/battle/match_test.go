package battle

import (
	models "PawArena/models/postgres"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpponentOf(t *testing.T) {
	session := &models.BattleSession{
		ID:         "session-1",
		BattleType: "1v1",
		Participants: []*models.BattleParticipant{
			{
				Username: "alice",
				Profile:  models.GameProfile{Username: "alice", UserIcon: 2, Level: 3, XP: 250},
			},
			{
				Username: "bob",
				Profile:  models.GameProfile{Username: "bob", UserIcon: 5, Level: 7, XP: 980},
			},
		},
	}

	opponent := opponentOf(session, "alice")
	assert.NotNil(t, opponent)
	assert.Equal(t, "bob", opponent.Username)
	assert.Equal(t, 5, opponent.Icon)
	assert.Equal(t, 7, opponent.Level)
	assert.Equal(t, 980, opponent.XP)

	opponent = opponentOf(session, "bob")
	assert.NotNil(t, opponent)
	assert.Equal(t, "alice", opponent.Username)
}

func TestOpponentOfAlone(t *testing.T) {
	session := &models.BattleSession{
		ID: "session-1",
		Participants: []*models.BattleParticipant{
			{Username: "alice"},
		},
	}

	assert.Nil(t, opponentOf(session, "alice"))
}

func TestJoinQueueValidation(t *testing.T) {
	coordinator := NewCoordinator(nil, nil, nil)

	_, err := coordinator.JoinQueue("", "1v1", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = coordinator.JoinQueue("alice", "5v5", nil)
	assert.ErrorIs(t, err, ErrInvalidBattleType)
}

func TestLeaveQueueWhenIdle(t *testing.T) {
	coordinator := NewCoordinator(nil, nil, nil)

	err := coordinator.LeaveQueue("alice")
	assert.ErrorIs(t, err, ErrNotQueuing)
}

func TestSubmitResultWithoutActiveBattle(t *testing.T) {
	coordinator := NewCoordinator(nil, nil, nil)

	_, err := coordinator.SubmitResult("alice", ResultSubmission{WinnerUsername: "alice"})
	assert.ErrorIs(t, err, ErrNoActiveBattle)

	_, err = coordinator.SubmitResult("", ResultSubmission{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
