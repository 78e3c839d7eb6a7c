package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/coref-scorer/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the router middleware
	},
}

// Hub maintains the set of active websocket clients and broadcasts messages.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run delivers queued messages until Close is called.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Set write deadline to prevent blocked clients from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("[Stream] Websocket write error", "err", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Close stops Run. Broadcast must not be called afterwards.
func (h *Hub) Close() {
	close(h.broadcast)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Subscribe handles incoming websocket connections
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("[Stream] Failed to upgrade websocket", "err", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()
	streamClients.Set(float64(total))

	logger.Info("[Stream] Client connected", "clients", total)

	// Keep alive loop (we only push, but must read to notice disconnects)
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mutex.Unlock()
			streamClients.Set(float64(total))
			conn.Close()
			logger.Info("[Stream] Client disconnected", "clients", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("[Stream] WebSocket error", "err", err)
				}
				break
			}
		}
	}()
}

// Broadcast queues data for all connected clients. When the queue is full
// the message is dropped rather than blocking the caller.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		logger.Warn("[Stream] Broadcast queue full, dropping message")
	}
}
