package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/dto"
	"shieldswap-client/internal/services"
)

// SwapHandler exposes swap proof generation and stealth address creation.
type SwapHandler struct {
	proofs map[string]*services.ProofService
	log    *logrus.Entry
}

// NewSwapHandler creates a new SwapHandler instance
func NewSwapHandler(proofs map[string]*services.ProofService) *SwapHandler {
	return &SwapHandler{
		proofs: proofs,
		log:    logrus.WithField("component", "swap_handler"),
	}
}

// resolve picks the proof service for the requested network, falling back
// to the only one when the request leaves it blank.
func (h *SwapHandler) resolve(network string) *services.ProofService {
	if svc, ok := h.proofs[network]; ok {
		return svc
	}
	if network == "" && len(h.proofs) == 1 {
		for _, svc := range h.proofs {
			return svc
		}
	}
	return nil
}

// ProveSwapHandler builds a Groth16 swap proof for an owned note
// POST /api/v1/swap/prove
func (h *SwapHandler) ProveSwapHandler(c *gin.Context) {
	var req dto.ProveSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := h.resolve(req.Network)
	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown network: " + req.Network})
		return
	}

	h.log.WithFields(logrus.Fields{
		"note_id": req.NoteID,
		"network": req.Network,
	}).Info("Swap proof requested")

	result, err := svc.ProveSwap(c.Request.Context(), req.NoteID, services.SwapParams{
		Recipient:      req.Recipient,
		Relayer:        req.Relayer,
		RelayerFee:     req.RelayerFee,
		ExpectedOutput: req.ExpectedOutput,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ProveSwapResponse{
		NoteID: req.NoteID,
		Result: result,
	})
}

// StealthAddressHandler generates a fresh one-time recipient key pair
// POST /api/v1/swap/stealth-address
func (h *SwapHandler) StealthAddressHandler(c *gin.Context) {
	svc := h.resolve(c.Query("network"))
	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No proof service available"})
		return
	}

	address, err := svc.NewStealthAddress()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}
