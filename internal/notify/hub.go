// Package notify is the downstream consumer of authenticated identity: a
// persisted notification feed plus a per-account SSE fan-out hub.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Event is one server-sent event.
type Event struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// Hub fans events out to the live connections of each account. Connections
// that cannot keep up drop events rather than block the publisher.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[uuid.UUID]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uuid.UUID]map[uuid.UUID]chan Event)}
}

// Subscribe registers a connection for the account. The returned cancel func
// removes the connection and closes the channel.
func (h *Hub) Subscribe(accountID uuid.UUID) (<-chan Event, func()) {
	connID := uuid.New()
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.conns[accountID] == nil {
		h.conns[accountID] = make(map[uuid.UUID]chan Event)
	}
	h.conns[accountID][connID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if m := h.conns[accountID]; m != nil {
				delete(m, connID)
				if len(m) == 0 {
					delete(h.conns, accountID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every live connection of the account.
func (h *Hub) Publish(accountID uuid.UUID, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.conns[accountID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
