package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shieldswap-client/internal/merkle"
	"shieldswap-client/internal/services"
)

// respondError maps service errors onto HTTP statuses. Anything unmapped is
// a 500 with the error text, which is acceptable for a loopback daemon.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, merkle.ErrLeafOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, services.ErrNoteAlreadySpent):
		status = http.StatusConflict
	case errors.Is(err, services.ErrNoteNotConfirmed):
		status = http.StatusConflict
	case errors.Is(err, services.ErrDuplicateNote):
		status = http.StatusConflict
	case errors.Is(err, services.ErrTreeNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrProverUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrPassphraseRequired):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseIDParam reads the :id path segment as a positive integer. On failure
// it writes the 400 response itself and reports false.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id format"})
		return 0, false
	}
	return id, true
}
