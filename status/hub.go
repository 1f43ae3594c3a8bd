package status

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"ha-futures-bot/interfaces"
	"ha-futures-bot/logging"
	"ha-futures-bot/models"
)

// Message is one frame pushed to websocket clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans decision and lifecycle events out to websocket clients. It is an
// interfaces.Observer; publishing never blocks the trading loop.
type Hub struct {
	upgrader  websocket.Upgrader
	logger    logging.LoggerInterface
	broadcast chan Message

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

var _ interfaces.Observer = (*Hub)(nil)

// NewHub creates a hub with a buffered broadcast queue.
func NewHub(logger logging.LoggerInterface) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:    logger,
		broadcast: make(chan Message, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run delivers queued messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				_ = c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if err := c.WriteJSON(msg); err != nil {
					h.logger.Debug("WebSocket write error: %v", err)
					delete(h.clients, c)
					_ = c.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues msg, dropping it when the queue is full.
func (h *Hub) Publish(msgType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: msgType, Data: data}:
	default:
		h.logger.Debug("Broadcast queue full, dropping %s", msgType)
	}
}

func (h *Hub) OnCondition(ev models.ConditionEvent) { h.Publish("condition", ev) }

func (h *Hub) OnEvent(ev models.Event) { h.Publish("event", ev) }

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request, sends hello and keeps the client registered
// until it disconnects. Client frames are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, hello Message) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warning("WebSocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	err = conn.WriteJSON(hello)
	if err == nil {
		h.clients[conn] = true
	}
	h.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return
	}

	defer func() {
		h.mu.Lock()
		if h.clients[conn] {
			delete(h.clients, conn)
			_ = conn.Close()
		}
		h.mu.Unlock()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
