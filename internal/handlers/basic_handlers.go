package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shieldswap-client/internal/clients"
	"shieldswap-client/internal/db"
	"shieldswap-client/internal/services"
)

// HealthHandler reports liveness plus the state of the daemon's components.
type HealthHandler struct {
	nats          *clients.NATSClient
	synchronizers map[string]*services.TreeSyncService
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(nats *clients.NATSClient, synchronizers map[string]*services.TreeSyncService) *HealthHandler {
	return &HealthHandler{nats: nats, synchronizers: synchronizers}
}

// HealthCheckHandler reports service liveness and component status
// GET /health
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	components := gin.H{}

	switch {
	case db.DB == nil:
		components["database"] = "ephemeral"
	default:
		components["database"] = "unhealthy"
		if sqlDB, err := db.DB.DB(); err == nil && sqlDB.Ping() == nil {
			components["database"] = "healthy"
		}
	}

	switch {
	case h.nats == nil:
		components["nats"] = "disabled"
	case h.nats.IsConnected():
		components["nats"] = "connected"
	default:
		components["nats"] = "disconnected"
	}

	sync := gin.H{}
	for name, synchronizer := range h.synchronizers {
		sync[name] = synchronizer.Status().State
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    "shieldswap-client",
		"version":    "v1.0",
		"components": components,
		"sync":       sync,
	})
}

// PingHandler is the minimal reachability probe
// GET /ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
