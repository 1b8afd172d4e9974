package websocket

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// OwnerKey builds the hub key for an owner, e.g. "merchant:42"
func OwnerKey(ownerType string, ownerID int32) string {
	return fmt.Sprintf("%s:%d", ownerType, ownerID)
}

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	OwnerKey() string
	Send(data []byte) error
	Close() error
}

// Hub manages WebSocket connections organized by settlement owner
// It is safe for concurrent use
type Hub struct {
	// owners maps owner key to a map of client ID to client
	owners map[string]map[string]ClientInterface
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		owners: make(map[string]map[string]ClientInterface),
	}
}

// Register adds a client to the hub under its owner
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owner := client.OwnerKey()
	clientID := client.ID()

	if h.owners[owner] == nil {
		h.owners[owner] = make(map[string]ClientInterface)
	}

	h.owners[owner][clientID] = client

	log.Debug().
		Str("owner", owner).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owner := client.OwnerKey()
	clientID := client.ID()

	if clients, ok := h.owners[owner]; ok {
		if _, exists := clients[clientID]; exists {
			delete(clients, clientID)

			// Clean up empty owner maps
			if len(clients) == 0 {
				delete(h.owners, owner)
			}

			log.Debug().
				Str("owner", owner).
				Str("client_id", clientID).
				Msg("WebSocket client unregistered")
		}
	}
}

// Broadcast sends an event to all clients watching a specific owner
func (h *Hub) Broadcast(owner string, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("owner", owner).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	clients, ok := h.owners[owner]
	if !ok || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy clients to avoid holding lock during send
	clientsCopy := make([]ClientInterface, 0, len(clients))
	for _, client := range clients {
		clientsCopy = append(clientsCopy, client)
	}
	h.mu.RUnlock()

	// Send to each client asynchronously
	for _, client := range clientsCopy {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Str("owner", owner).
					Str("client_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(client)
	}

	log.Debug().
		Str("owner", owner).
		Str("event_type", event.Type).
		Int("client_count", len(clientsCopy)).
		Msg("Broadcast event")
}

// ClientCount returns the number of clients watching an owner
func (h *Hub) ClientCount(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.owners[owner]; ok {
		return len(clients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients across all owners
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.owners {
		total += len(clients)
	}
	return total
}
