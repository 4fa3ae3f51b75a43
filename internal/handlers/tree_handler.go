package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/services"
)

// TreeHandler exposes the per-network commitment tree state: sync status,
// manual triggers, and authentication paths.
type TreeHandler struct {
	synchronizers map[string]*services.TreeSyncService
	log           *logrus.Entry
}

// NewTreeHandler creates a new TreeHandler instance
func NewTreeHandler(synchronizers map[string]*services.TreeSyncService) *TreeHandler {
	return &TreeHandler{
		synchronizers: synchronizers,
		log:           logrus.WithField("component", "tree_handler"),
	}
}

// lookup resolves the :network path segment. With a single configured
// network the segment may be omitted from client code that hardcodes it.
func (h *TreeHandler) lookup(c *gin.Context) (*services.TreeSyncService, bool) {
	name := c.Param("network")
	if sync, ok := h.synchronizers[name]; ok {
		return sync, true
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Unknown network: " + name})
	return nil, false
}

// ListNetworksHandler lists synchronized networks with their status
// GET /api/v1/tree
func (h *TreeHandler) ListNetworksHandler(c *gin.Context) {
	statuses := make(map[string]interface{}, len(h.synchronizers))
	for name, sync := range h.synchronizers {
		statuses[name] = sync.Status()
	}
	c.JSON(http.StatusOK, gin.H{
		"networks": statuses,
		"total":    len(statuses),
	})
}

// StatusHandler returns the sync status for one network
// GET /api/v1/tree/:network/status
func (h *TreeHandler) StatusHandler(c *gin.Context) {
	sync, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sync.Status())
}

// SyncHandler triggers a synchronization round immediately
// POST /api/v1/tree/:network/sync
func (h *TreeHandler) SyncHandler(c *gin.Context) {
	sync, ok := h.lookup(c)
	if !ok {
		return
	}

	status, err := sync.Sync(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": status})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "status": status})
		return
	}

	c.JSON(http.StatusOK, status)
}

// RefreshHandler discards local tree state and resyncs from scratch
// POST /api/v1/tree/:network/refresh
func (h *TreeHandler) RefreshHandler(c *gin.Context) {
	sync, ok := h.lookup(c)
	if !ok {
		return
	}

	h.log.WithField("network", c.Param("network")).Warn("Forcing full tree refresh")
	status, err := sync.ForceRefresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": status})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "status": status})
		return
	}

	c.JSON(http.StatusOK, status)
}

// RootHandler returns the current local root
// GET /api/v1/tree/:network/root
func (h *TreeHandler) RootHandler(c *gin.Context) {
	sync, ok := h.lookup(c)
	if !ok {
		return
	}

	root, err := sync.Root()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"root": root})
}

// ProofHandler derives a fresh authentication path for a leaf
// GET /api/v1/tree/:network/proof/:leafIndex
func (h *TreeHandler) ProofHandler(c *gin.Context) {
	sync, ok := h.lookup(c)
	if !ok {
		return
	}

	leafIndex, err := strconv.ParseUint(c.Param("leafIndex"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid leafIndex format"})
		return
	}

	proof, err := sync.Proof(leafIndex)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, services.ProofValues(proof))
}
