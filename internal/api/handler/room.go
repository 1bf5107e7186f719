package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"honbap/backend/internal/config"
	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
)

func (h *Handler) AcceptInvite(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	if err := h.Pairing.Accept(c.Request.Context(), sess, roomID); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase": models.PhaseStartCheck})
}

func (h *Handler) DeclineInvite(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	if err := h.Pairing.Decline(c.Request.Context(), sess, roomID); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	h.afterPenalty(sess.UserID)
	h.archiveIfTerminal(roomID)
	c.JSON(http.StatusOK, gin.H{"phase": models.PhaseDeclined})
}

func (h *Handler) VoteStart(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	var body struct {
		Yes bool `json:"yes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vote"})
		return
	}
	if err := h.Pairing.VoteStart(c.Request.Context(), sess, roomID, body.Yes); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	if !body.Yes {
		h.afterPenalty(sess.UserID)
	}
	room, err := h.Pairing.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	if room.Terminal() {
		h.archiveIfTerminal(roomID)
	}
	c.JSON(http.StatusOK, gin.H{"phase": room.Phase})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	h.stopHeartbeat(sess.UserID)
	if err := h.Pairing.LeaveRoom(c.Request.Context(), sess, roomID); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	h.afterPenalty(sess.UserID)
	h.archiveIfTerminal(roomID)
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// AwaitPhase blocks up to the timeout for the room to leave the given phase.
// A timeout answers 200 with "timeout" rather than an error status: the
// caller distinguishes it from a decline by the phase value.
func (h *Handler) AwaitPhase(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	if err := h.Pairing.AssertMember(c.Request.Context(), sess, roomID); err != nil {
		// The initiator is not yet in members while waiting on the invite.
		room, gerr := h.Pairing.GetRoom(c.Request.Context(), roomID)
		if gerr != nil || room.Invite.To != sess.UserID && !room.HasMember(sess.UserID) {
			h.apiError(c, lang(c), err)
			return
		}
	}

	from := c.DefaultQuery("from", models.PhasePendingAccept)
	timeout := config.InviteWaitTimeout
	if secs, err := strconv.Atoi(c.Query("timeout")); err == nil && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	phase, err := h.Pairing.AwaitPhaseChange(c.Request.Context(), roomID, from, timeout)
	if err == pairing.ErrWaitTimeout {
		c.JSON(http.StatusOK, gin.H{"phase": "", "timeout": true, "message": h.Loc.GetString(lang(c), "match.timeout")})
		return
	}
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase": phase, "timeout": false})
}

// PairWithBot creates a bot room for offline testing.
func (h *Handler) PairWithBot(c *gin.Context) {
	sess := session(c)
	greeting := h.Loc.GetString(lang(c), "bot.greeting")
	roomID, err := h.Pairing.PairWithBot(c.Request.Context(), sess, greeting)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "phase": models.PhaseChatting})
}

func (h *Handler) GetRoom(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	room, err := h.Pairing.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	if !room.HasMember(sess.UserID) && room.Invite.To != sess.UserID {
		h.apiError(c, lang(c), pairing.ErrNotMember)
		return
	}
	c.JSON(http.StatusOK, room)
}

// SendMessage appends one chat message.
func (h *Handler) SendMessage(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}
	if err := h.Pairing.Send(c.Request.Context(), sess, roomID, body.Text); err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// ListMessages returns the current feed snapshot.
func (h *Handler) ListMessages(c *gin.Context) {
	sess := session(c)
	msgs, err := h.Pairing.Messages(c.Request.Context(), sess, c.Param("roomId"))
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// afterPenalty asks the policy layer whether the accumulated ledger now
// crosses a ban threshold. Best-effort.
func (h *Handler) afterPenalty(userID string) {
	if h.Policy == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Policy.CheckForBan(ctx, userID); err != nil {
		log.Printf("ERROR: ban check for %s failed: %v", userID, err)
	}
}

// archiveIfTerminal copies a finished room and its transcript to Postgres.
// Best-effort; the store remains the source of truth.
func (h *Handler) archiveIfTerminal(roomID string) {
	if h.Archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, err := h.Pairing.GetRoom(ctx, roomID)
	if err != nil || !room.Terminal() {
		return
	}
	msgs, err := h.Pairing.RoomTranscript(ctx, roomID)
	if err != nil {
		log.Printf("ERROR: transcript read for room %s failed: %v", roomID, err)
		return
	}
	var shared []string
	if len(room.Members) > 0 {
		shared = h.Pairing.SharedFreeSlots(ctx, room.Members[0], room.Invite.To)
	}
	if err := h.Archive.ArchiveRoom(room, msgs, shared); err != nil {
		log.Printf("ERROR: archive of room %s failed: %v", roomID, err)
	}
}
