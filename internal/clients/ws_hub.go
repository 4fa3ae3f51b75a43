package clients

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds to loopback; origin checks are enforced by CORS
		// on the HTTP API, not here.
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 16
)

// wsConnection is one subscriber with its outbound queue.
type wsConnection struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// StatusMessage is the envelope pushed to websocket subscribers.
type StatusMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// StatusHub fans daemon status updates (sync results, note changes) out to
// connected websocket clients. Slow clients are dropped rather than allowed
// to stall the broadcast.
type StatusHub struct {
	mu          sync.RWMutex
	connections map[string]*wsConnection
	log         *logrus.Entry
}

// NewStatusHub creates an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{
		connections: make(map[string]*wsConnection),
		log:         logrus.WithField("component", "ws_hub"),
	}
}

// HandleConnection upgrades the request and serves the subscriber until it
// disconnects. Blocks; call from the HTTP handler goroutine.
func (h *StatusHub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &wsConnection{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast queues a typed message for every connected subscriber.
func (h *StatusHub) Broadcast(messageType string, data interface{}) {
	msg := StatusMessage{
		Type:      messageType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: uuid.New().String(),
		Data:      data,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode status message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.connections {
		select {
		case c.send <- raw:
		default:
			// Queue full; the write pump will notice the closed socket.
			h.log.WithField("connection_id", c.id).Warn("Dropping slow websocket client")
			c.conn.Close()
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *StatusHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll disconnects every subscriber, used on shutdown.
func (h *StatusHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.connections {
		c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		c.conn.Close()
		delete(h.connections, id)
	}
	metrics.WSClientsConnected.Set(0)
}

func (h *StatusHub) register(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c.id] = c
	metrics.WSClientsConnected.Set(float64(len(h.connections)))
	h.log.WithField("connection_id", c.id).Debug("Websocket client connected")
}

func (h *StatusHub) unregister(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c.id]; ok {
		delete(h.connections, c.id)
		close(c.send)
		c.conn.Close()
		metrics.WSClientsConnected.Set(float64(len(h.connections)))
		h.log.WithField("connection_id", c.id).Debug("Websocket client disconnected")
	}
}

func (h *StatusHub) writePump(c *wsConnection) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StatusHub) readPump(c *wsConnection) {
	// Subscribers are read-only; drain control frames until the peer goes
	// away.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Debug("Websocket read error")
			}
			return
		}
	}
}
