package redis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionEventWirePayload(t *testing.T) {
	data, err := json.Marshal(&SessionEvent{
		Type:      EventParticipantJoined,
		SessionID: "session-1",
		Username:  "alice",
	})
	assert.NoError(t, err)
	// Status is omitted for join/leave events, keeping payloads minimal
	assert.JSONEq(t, `{"type":"participant_joined","session_id":"session-1","username":"alice"}`, string(data))

	var decoded SessionEvent
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EventParticipantJoined, decoded.Type)
	assert.Equal(t, "session-1", decoded.SessionID)
}
