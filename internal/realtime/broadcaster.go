// Package realtime provides WebSocket broadcasting for live board updates.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// BoardEvent is pushed to subscribers whenever a scope's kanban board changes.
type BoardEvent struct {
	Type  string              `json:"type"` // "board_updated"
	Scope string              `json:"scope"`
	Board map[string][]string `json:"board"`
}

// EventBoardUpdated is the event type for kanban board changes.
const EventBoardUpdated = "board_updated"

// Subscriber is one registered WebSocket connection. All writes to the
// connection go through Send, which serializes them: gorilla/websocket
// forbids concurrent writers on a single connection.
type Subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Send writes one event frame to the subscriber's connection.
func (s *Subscriber) Send(event BoardEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.send(data)
}

func (s *Subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster manages WebSocket connections grouped by ranking scope and
// fans board events out to them.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[*websocket.Conn]*Subscriber // scope -> subscribers
	logger      *slog.Logger
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[*websocket.Conn]*Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a WebSocket connection for a scope and returns its
// subscriber, which the caller uses for any direct sends of its own.
func (b *Broadcaster) Subscribe(scope string, conn *websocket.Conn) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[scope] == nil {
		b.subscribers[scope] = make(map[*websocket.Conn]*Subscriber)
	}
	sub := &Subscriber{conn: conn}
	b.subscribers[scope][conn] = sub
	return sub
}

// Unsubscribe removes a WebSocket connection from all scopes.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for scope, subs := range b.subscribers {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(b.subscribers, scope)
		}
	}
}

// BroadcastBoard sends a board update to all subscribers of a scope.
func (b *Broadcaster) BroadcastBoard(scope string, board map[string][]string) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers[scope]))
	for _, sub := range b.subscribers[scope] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	event := BoardEvent{
		Type:  EventBoardUpdated,
		Scope: scope,
		Board: board,
	}

	// Serialize once
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal board event", slog.String("error", err.Error()))
		return
	}

	for _, sub := range subs {
		if err := sub.send(data); err != nil {
			b.logger.Warn("failed to send board event to websocket client",
				slog.String("error", err.Error()),
				slog.String("scope", scope))
			// Connection will be cleaned up when client disconnects
		}
	}
}

// ConnectionCount returns the number of active WebSocket connections for a scope.
func (b *Broadcaster) ConnectionCount(scope string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if subs, exists := b.subscribers[scope]; exists {
		return len(subs)
	}
	return 0
}
