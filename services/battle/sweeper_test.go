package battle

import (
	redis_models "PawArena/models/redis"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestSweepStaleSessionsCancelsOldWaiting(t *testing.T) {
	store, mock, pub := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}).
			AddRow("stale-1", "1v1", "waiting").
			AddRow("stale-2", "2v2", "waiting"))

	mock.ExpectExec(`UPDATE "battle_sessions" SET "status"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "battle_sessions" SET "status"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sweepStaleSessions(store, 10*time.Minute)

	assert.Len(t, pub.events, 2)
	assert.Equal(t, redis_models.EventStatusChanged, pub.events[0].Type)
	assert.Equal(t, "cancelled", pub.events[0].Status)
	assert.Equal(t, "stale-1", pub.events[0].SessionID)
	assert.Equal(t, "stale-2", pub.events[1].SessionID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStaleSessionsNothingToDo(t *testing.T) {
	store, mock, pub := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "battle_sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "battle_type", "status"}))

	sweepStaleSessions(store, 10*time.Minute)

	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
