package status

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lcalzada-xor/wpilot/internal/core/services/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The status surface binds to localhost or a closed field
		// network; origin checks add nothing there.
		return true
	},
}

// EventSource is the orchestrator's feed surface.
type EventSource interface {
	Subscribe() <-chan orchestrator.Event
	Unsubscribe(<-chan orchestrator.Event)
}

// WSManager pushes campaign events to websocket clients.
type WSManager struct {
	source EventSource

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWSManager broadcasts events from source.
func NewWSManager(source EventSource) *WSManager {
	return &WSManager{
		source:  source,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start consumes the event feed until ctx is cancelled.
func (m *WSManager) Start(ctx context.Context) {
	go m.broadcastLoop(ctx)
}

// HandleWebSocket upgrades the connection and registers the client.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()
	log.Printf("[WS] Client connected: %s", conn.RemoteAddr())

	// Drain reads so pings and close frames are processed; the feed is
	// one-way.
	go func() {
		defer m.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WSManager) broadcastLoop(ctx context.Context) {
	events := m.source.Subscribe()
	defer m.source.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case ev, ok := <-events:
			if !ok {
				m.closeAll()
				return
			}
			m.broadcast(ev)
		}
	}
}

func (m *WSManager) broadcast(ev orchestrator.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}

func (m *WSManager) drop(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn.Close()
	delete(m.clients, conn)
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.Close()
		delete(m.clients, conn)
	}
}
