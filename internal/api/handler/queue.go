package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
)

// apiError maps engine errors to HTTP responses. Quota failures get their
// own user-actionable message instead of a generic 500.
func (h *Handler) apiError(c *gin.Context, lang string, err error) {
	switch {
	case errors.Is(err, pairing.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, pairing.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pairing.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, pairing.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, docstore.ErrQuota):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": h.Loc.GetString(lang, "quota.exceeded")})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func lang(c *gin.Context) string {
	if l := c.Query("lang"); l != "" {
		return l
	}
	return "ko"
}

// EnterQueue creates the caller's waiting entry, starts their heartbeat, and
// fires one immediate match attempt like the original flow did.
func (h *Handler) EnterQueue(c *gin.Context) {
	sess := session(c)
	var prefs models.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preferences"})
		return
	}

	entryID, err := h.Pairing.Enter(c.Request.Context(), sess, prefs)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	h.trackHeartbeat(sess.UserID, h.Pairing.StartHeartbeat(sess, entryID))

	roomID, err := h.Pairing.TryMatch(c.Request.Context(), sess, entryID)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry_id": entryID, "room_id": roomID})
}

// CancelQueue stops the heartbeat and deletes the caller's entries.
// Idempotent: cancelling an empty queue succeeds.
func (h *Handler) CancelQueue(c *gin.Context) {
	sess := session(c)
	h.stopHeartbeat(sess.UserID)
	if err := h.Pairing.Leave(c.Request.Context(), sess); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// MarkLeaving soft-exits without deleting, e.g. on tab blur.
func (h *Handler) MarkLeaving(c *gin.Context) {
	sess := session(c)
	if err := h.Pairing.MarkLeaving(c.Request.Context(), sess); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "leaving"})
}

// TryMatch runs one selection + commit attempt for an existing entry.
func (h *Handler) TryMatch(c *gin.Context) {
	sess := session(c)
	entryID := c.Param("entryId")
	roomID, err := h.Pairing.TryMatch(c.Request.Context(), sess, entryID)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}

// QueueStatus returns the current state of one entry.
func (h *Handler) QueueStatus(c *gin.Context) {
	entry, err := h.Pairing.GetEntry(c.Request.Context(), c.Param("entryId"))
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	if entry.UserID != session(c).UserID {
		h.apiError(c, lang(c), pairing.ErrNotMember)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry_id": entry.EntryID, "status": entry.Status, "room_id": entry.RoomID})
}
