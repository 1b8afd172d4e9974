package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_TypeFormat(t *testing.T) {
	event := NewEvent(EventTypeCompleted, EntityTypeBatch, nil)

	assert.Equal(t, "batch.completed", event.Type)
	assert.Equal(t, EntityTypeBatch, event.Entity)
	assert.False(t, event.Timestamp.IsZero())
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		event    Event
		wantType string
		entity   EntityType
	}{
		{BatchProcessing(nil), "batch.processing", EntityTypeBatch},
		{BatchResuming(nil), "batch.resuming", EntityTypeBatch},
		{BatchCompleted(nil), "batch.completed", EntityTypeBatch},
		{BatchFailed(nil), "batch.failed", EntityTypeBatch},
		{CandidateSettled(nil), "candidate.settled", EntityTypeCandidate},
		{CandidateFailed(nil), "candidate.failed", EntityTypeCandidate},
		{WalletCredited(nil), "wallet.credited", EntityTypeWallet},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wantType, tt.event.Type)
		assert.Equal(t, tt.entity, tt.event.Entity)
	}
}

func TestEvent_ToJSON(t *testing.T) {
	event := CandidateSettled(map[string]interface{}{"id": 3, "net": "97.50"})

	data, err := event.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "candidate.settled", decoded["type"])
	assert.Equal(t, "candidate", decoded["entity"])

	payload, ok := decoded["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "97.50", payload["net"])
}

func TestNoOpPublisher(t *testing.T) {
	var publisher EventPublisher = &NoOpPublisher{}

	// Must accept events without side effects
	publisher.Publish(OwnerKey("merchant", 1), BatchCompleted(nil))
}
