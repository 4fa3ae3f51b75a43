package dto

import "shieldswap-client/internal/models"

// ==================== Note DTOs ====================

// CreateNoteRequest Create a deposit note before submitting the on-chain deposit
type CreateNoteRequest struct {
	Amount       string `json:"amount" binding:"required"` // deposit amount in token base units, decimal string
	TokenAddress string `json:"token_address"`             // ERC20 address, empty for the native asset
	TokenSymbol  string `json:"token_symbol"`
}

// CreateNoteResponse Stored record plus the one-time backup blob
type CreateNoteResponse struct {
	Note           *models.Note `json:"note"`
	SerializedNote string       `json:"serialized_note"` // contains the note secrets, shown exactly once
}

// ConfirmNoteRequest Record the leaf index assigned by the deposit transaction
type ConfirmNoteRequest struct {
	LeafIndex     *uint64 `json:"leaf_index" binding:"required"`
	DepositTxHash string  `json:"deposit_tx_hash"`
}

// ImportNoteRequest Import a single serialized note blob
type ImportNoteRequest struct {
	SerializedNote string `json:"serialized_note" binding:"required"`
	TokenAddress   string `json:"token_address"`
	TokenSymbol    string `json:"token_symbol"`
}

// ExportNotesRequest Export the note database, optionally encrypted
type ExportNotesRequest struct {
	Passphrase string `json:"passphrase"` // empty exports plaintext JSON
}

// ExportNotesResponse Export payload
type ExportNotesResponse struct {
	Data string `json:"data"`
}

// ImportNotesRequest Restore notes from an export blob
type ImportNotesRequest struct {
	Data       string `json:"data" binding:"required"`
	Passphrase string `json:"passphrase"` // required when the blob is encrypted
}

// NoteListResponse Note listing with counts
type NoteListResponse struct {
	Notes []*models.Note `json:"notes"`
	Total int            `json:"total"`
}

// ClearNotesResponse Number of notes removed by a clear
type ClearNotesResponse struct {
	Deleted int64 `json:"deleted"`
}
