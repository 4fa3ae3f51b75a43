package dto

import "shieldswap-client/internal/types"

// ==================== Swap DTOs ====================

// ProveSwapRequest Request a swap proof for an owned note
type ProveSwapRequest struct {
	NoteID         uint64 `json:"note_id" binding:"required"`
	Network        string `json:"network"`                      // config network name, optional when only one is enabled
	Recipient      string `json:"recipient" binding:"required"` // swap output recipient, usually a stealth address
	Relayer        string `json:"relayer"`
	RelayerFee     string `json:"relayer_fee"`
	ExpectedOutput string `json:"expected_output"`
}

// ProveSwapResponse Groth16 proof plus the public signals the contract checks
type ProveSwapResponse struct {
	NoteID uint64             `json:"note_id"`
	Result *types.ProofResult `json:"result"`
}
