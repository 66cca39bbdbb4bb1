package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"airalert-service/internal/logging"
	"airalert-service/internal/models"
)

// maxEventClients caps concurrent websocket subscribers.
const maxEventClients = 64

// defaultWriteWait bounds a single client write. Publish runs on the
// pipeline goroutine, so a client that stops reading must be dropped
// rather than allowed to stall it.
const defaultWriteWait = 10 * time.Second

// Hub fans pipeline events out to connected websocket clients.
type Hub struct {
	mu        sync.Mutex
	conns     map[*websocket.Conn]bool
	upgrader  websocket.Upgrader
	writeWait time.Duration
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeWait: defaultWriteWait,
	}
}

// Publish sends an event to every connected client, dropping clients
// whose connection errors or whose write deadline expires.
func (h *Hub) Publish(event models.PipelineEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// HandleWS upgrades the request and registers the client until it
// disconnects.
func (h *Hub) HandleWS(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("Websocket upgrade failed: %v", err)
			return
		}

		h.mu.Lock()
		if len(h.conns) >= maxEventClients {
			h.mu.Unlock()
			logger.Warnf("Websocket client limit reached, rejecting connection")
			conn.Close()
			return
		}
		h.conns[conn] = true
		total := len(h.conns)
		h.mu.Unlock()
		logger.Infof("Websocket client connected (total: %d)", total)

		// Drain reads to detect disconnect.
		go func() {
			defer func() {
				h.mu.Lock()
				delete(h.conns, conn)
				h.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
