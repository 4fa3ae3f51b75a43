package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/dto"
	"shieldswap-client/internal/services"
)

// NoteHandler exposes the deposit-note lifecycle over the local API.
type NoteHandler struct {
	notes *services.NoteService
	log   *logrus.Entry
}

// NewNoteHandler creates a new NoteHandler instance
func NewNoteHandler(notes *services.NoteService) *NoteHandler {
	return &NoteHandler{
		notes: notes,
		log:   logrus.WithField("component", "note_handler"),
	}
}

// CreateNoteHandler creates a fresh deposit note
// POST /api/v1/notes
func (h *NoteHandler) CreateNoteHandler(c *gin.Context) {
	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, blob, err := h.notes.CreateNote(c.Request.Context(), req.Amount, req.TokenAddress, req.TokenSymbol)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateNoteResponse{
		Note:           record,
		SerializedNote: blob,
	})
}

// ListNotesHandler lists stored notes
// GET /api/v1/notes?unspent=true
func (h *NoteHandler) ListNotesHandler(c *gin.Context) {
	unspentOnly := c.Query("unspent") == "true"

	notes, err := h.notes.ListNotes(c.Request.Context(), unspentOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NoteListResponse{
		Notes: notes,
		Total: len(notes),
	})
}

// GetNoteHandler returns one note by id
// GET /api/v1/notes/:id
func (h *NoteHandler) GetNoteHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	record, err := h.notes.GetNote(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// CountNotesHandler returns total and unspent counts
// GET /api/v1/notes/count
func (h *NoteHandler) CountNotesHandler(c *gin.Context) {
	counts, err := h.notes.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// ConfirmNoteHandler records the leaf index from the deposit receipt
// POST /api/v1/notes/:id/confirm
func (h *NoteHandler) ConfirmNoteHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req dto.ConfirmNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.notes.ConfirmNote(c.Request.Context(), id, *req.LeafIndex, req.DepositTxHash)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// SpendNoteHandler marks a note consumed after its swap confirms
// POST /api/v1/notes/:id/spend
func (h *NoteHandler) SpendNoteHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	record, err := h.notes.MarkSpent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// DeleteNoteHandler removes one note permanently
// DELETE /api/v1/notes/:id
func (h *NoteHandler) DeleteNoteHandler(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.notes.DeleteNote(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ClearNotesHandler removes every stored note
// DELETE /api/v1/notes
func (h *NoteHandler) ClearNotesHandler(c *gin.Context) {
	deleted, err := h.notes.ClearNotes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	h.log.WithField("deleted", deleted).Warn("Cleared note store")
	c.JSON(http.StatusOK, dto.ClearNotesResponse{Deleted: deleted})
}

// ImportNoteHandler restores a single serialized note
// POST /api/v1/notes/import-one
func (h *NoteHandler) ImportNoteHandler(c *gin.Context) {
	var req dto.ImportNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.notes.ImportNote(c.Request.Context(), req.SerializedNote, req.TokenAddress, req.TokenSymbol)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// ExportNotesHandler exports the note database as a backup blob
// POST /api/v1/notes/export
func (h *NoteHandler) ExportNotesHandler(c *gin.Context) {
	var req dto.ExportNotesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	blob, err := h.notes.Export(c.Request.Context(), req.Passphrase)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ExportNotesResponse{Data: blob})
}

// ImportNotesHandler restores notes from a backup blob
// POST /api/v1/notes/import
func (h *NoteHandler) ImportNotesHandler(c *gin.Context) {
	var req dto.ImportNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.notes.Import(c.Request.Context(), req.Data, req.Passphrase)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
