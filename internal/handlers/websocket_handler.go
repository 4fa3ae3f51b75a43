package handlers

import (
	"github.com/gin-gonic/gin"

	"shieldswap-client/internal/clients"
)

// WebSocketHandler upgrades API clients onto the status hub, which pushes
// sync progress and note lifecycle events as they happen.
type WebSocketHandler struct {
	hub *clients.StatusHub
}

// NewWebSocketHandler creates a new WebSocketHandler instance
func NewWebSocketHandler(hub *clients.StatusHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the connection and attaches it to the hub
// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.hub.HandleConnection(c.Writer, c.Request)
}
