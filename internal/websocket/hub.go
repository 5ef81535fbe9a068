package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is the envelope for every message pushed to dashboard clients
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Event types delivered to the dashboard
const (
	EventTaskUpdate    = "task_update"
	EventTaskCompleted = "task_completed"
	EventTaskError     = "task_error"
	EventSyncProgress  = "sync_progress"
	EventOrderUpdate   = "order_update"
)

// Hub maintains the set of active dashboard clients and broadcasts
// task-state and sync-status change events to all of them.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				close(old.send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("📱 Dashboard client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				log.Printf("📴 Dashboard client disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full or client dead, drop for this client
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes an event to every connected client
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	jsonMsg, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
		log.Printf("⚠️  Broadcast buffer full, dropping %s event", eventType)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
