package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Event_JSON_Carries_Type_Tag(t *testing.T) {
	// Arrange
	ev := Event{
		SessionID: "s",
		Sequence:  7,
		CreatedAt: time.UnixMilli(1_700_000_000_123),
		Payload:   Delta{Queue: []QueueItem{}, StateHash: "h", CorrelationID: "c-1"},
	}

	// Act
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var back Event
	err = json.Unmarshal(raw, &back)

	// Assert
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"Delta","sessionId":"s","sequence":7,"createdAt":1700000000123,
		"queue":[],"currentClimbQueueItem":null,"stateHash":"h","correlationId":"c-1"}`, string(raw))
	require.Equal(t, ev.Sequence, back.Sequence)
	require.True(t, ev.CreatedAt.Equal(back.CreatedAt))
	require.Equal(t, ev.Payload, back.Payload)
}

func Test_Event_Unknown_Type_Fails(t *testing.T) {
	var ev Event
	require.Error(t, json.Unmarshal([]byte(`{"type":"Bogus"}`), &ev))

	_, err := json.Marshal(Event{})
	require.Error(t, err)
}
