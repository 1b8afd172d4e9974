package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	ownerKey string
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id, ownerKey string) *mockClient {
	return &mockClient{
		id:       id,
		ownerKey: ownerKey,
		messages: make([][]byte, 0),
	}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) OwnerKey() string {
	return m.ownerKey
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]byte, len(m.messages))
	copy(copied, m.messages)
	return copied
}

func TestOwnerKey(t *testing.T) {
	assert.Equal(t, "merchant:42", OwnerKey("merchant", 42))
	assert.Equal(t, "franchise:7", OwnerKey("franchise", 7))
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	client1 := newMockClient("client-1", OwnerKey("merchant", 1))
	client2 := newMockClient("client-2", OwnerKey("merchant", 1))
	client3 := newMockClient("client-3", OwnerKey("franchise", 2))

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	assert.Equal(t, 2, hub.ClientCount(OwnerKey("merchant", 1)))
	assert.Equal(t, 1, hub.ClientCount(OwnerKey("franchise", 2)))
	assert.Equal(t, 3, hub.TotalClientCount())

	hub.Unregister(client1)
	assert.Equal(t, 1, hub.ClientCount(OwnerKey("merchant", 1)))
	assert.Equal(t, 2, hub.TotalClientCount())

	// Unregistering the last client removes the owner entry
	hub.Unregister(client2)
	assert.Equal(t, 0, hub.ClientCount(OwnerKey("merchant", 1)))

	// Unregistering twice is harmless
	hub.Unregister(client2)
	assert.Equal(t, 1, hub.TotalClientCount())
}

func TestHub_Broadcast_OnlyToOwner(t *testing.T) {
	hub := NewHub()

	merchantClient := newMockClient("client-1", OwnerKey("merchant", 1))
	otherClient := newMockClient("client-2", OwnerKey("merchant", 2))
	hub.Register(merchantClient)
	hub.Register(otherClient)

	event := BatchCompleted(map[string]interface{}{"id": 5})
	hub.Broadcast(OwnerKey("merchant", 1), event)

	// Sends are asynchronous
	require.Eventually(t, func() bool {
		return len(merchantClient.GetMessages()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Empty(t, otherClient.GetMessages())

	var decoded Event
	require.NoError(t, json.Unmarshal(merchantClient.GetMessages()[0], &decoded))
	assert.Equal(t, "batch.completed", decoded.Type)
	assert.Equal(t, EntityTypeBatch, decoded.Entity)
}

func TestHub_Broadcast_NoClients(t *testing.T) {
	hub := NewHub()

	// Broadcasting into the void should not panic
	hub.Broadcast(OwnerKey("merchant", 99), BatchFailed(nil))
}

func TestHub_Publish_ImplementsEventPublisher(t *testing.T) {
	var publisher EventPublisher = NewHub()

	// Publish delegates to Broadcast
	publisher.Publish(OwnerKey("merchant", 1), BatchProcessing(nil))
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			client := newMockClient(OwnerKey("c", int32(n)), OwnerKey("merchant", 1))
			hub.Register(client)
			hub.Broadcast(OwnerKey("merchant", 1), CandidateSettled(nil))
			hub.Unregister(client)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.TotalClientCount())
}
