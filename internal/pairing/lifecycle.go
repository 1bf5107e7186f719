package pairing

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
)

// getRoom decodes a fresh snapshot inside a transaction.
func getRoom(tx docstore.Tx, col docstore.Collection, roomID string) (models.Room, error) {
	snap, err := tx.Get(col, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if !snap.Exists() {
		return models.Room{}, ErrNotFound
	}
	var room models.Room
	if err := snap.Decode(&room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// Accept is the invitee joining the room: members gains the caller, the
// invite flips to accepted, and the phase advances to startCheck. Only the
// invited user may accept, and only while the room is still pendingAccept.
func (s *Service) Accept(ctx context.Context, sess Session, roomID string) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	return s.runRoomTx(ctx, roomID, func(room *models.Room) error {
		if room.Invite.To != sess.UserID {
			return ErrNotMember
		}
		if room.Phase != models.PhasePendingAccept {
			return ErrRaceLost
		}
		room.Members = append(room.Members, sess.UserID)
		room.Invite.State = models.InviteAccepted
		room.Phase = models.PhaseStartCheck
		return nil
	})
}

// Decline is the invitee refusing the match; the room terminates in the
// declined phase and the decliner takes a penalty.
func (s *Service) Decline(ctx context.Context, sess Session, roomID string) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	err := s.runRoomTx(ctx, roomID, func(room *models.Room) error {
		if room.Invite.To != sess.UserID {
			return ErrNotMember
		}
		if room.Phase != models.PhasePendingAccept {
			return ErrRaceLost
		}
		room.Invite.State = models.InviteDeclined
		room.Phase = models.PhaseDeclined
		return nil
	})
	if err != nil {
		return err
	}
	s.penalize(ctx, sess.UserID, PenaltyDecline)
	return nil
}

// VoteStart records the caller's yes/no start vote. Re-voting overwrites the
// caller's own vote and never double-counts. The tally fires only once every
// current member has voted: unanimous yes opens the chat, any no terminates
// in startDeclined. Vote application is commutative, so concurrent votes
// serialize to the same final phase in either order.
func (s *Service) VoteStart(ctx context.Context, sess Session, roomID string, yes bool) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	var penalize bool
	err := s.runRoomTx(ctx, roomID, func(room *models.Room) error {
		if !room.HasMember(sess.UserID) {
			return ErrNotMember
		}
		if room.Phase != models.PhaseStartCheck {
			return ErrRaceLost
		}
		if room.Votes == nil {
			room.Votes = map[string]bool{}
		}
		prev, voted := room.Votes[sess.UserID]
		penalize = !yes && (!voted || prev)
		room.Votes[sess.UserID] = yes

		allVoted := true
		allYes := true
		for _, m := range room.Members {
			v, ok := room.Votes[m]
			if !ok {
				allVoted = false
				break
			}
			if !v {
				allYes = false
			}
		}
		if allVoted {
			if allYes {
				room.Phase = models.PhaseChatting
			} else {
				room.Phase = models.PhaseStartDeclined
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if penalize {
		s.penalize(ctx, sess.UserID, PenaltyStartDecline)
	}
	return nil
}

// LeaveRoom removes the caller from the members set; emptying it ends the
// room. Leaving an active chat takes the abandonment penalty. The caller's
// queue entries are cleared as well, in case a stale matched entry lingers.
// Safe on an already-left or already-deleted room.
func (s *Service) LeaveRoom(ctx context.Context, sess Session, roomID string) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	var abandoned bool
	err := s.runRoomTx(ctx, roomID, func(room *models.Room) error {
		if !room.HasMember(sess.UserID) {
			return errNothingToDo
		}
		members := room.Members[:0]
		for _, m := range room.Members {
			if m != sess.UserID {
				members = append(members, m)
			}
		}
		room.Members = members
		abandoned = room.Phase == models.PhaseChatting
		if len(room.Members) == 0 {
			room.Phase = models.PhaseEnded
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNothingToDo) && !errors.Is(err, ErrNotFound) {
		return err
	}
	if abandoned {
		s.penalize(ctx, sess.UserID, PenaltyAbandon)
	}
	// Defensive cleanup: leaving a room should never strand a queue entry.
	if err := s.Leave(ctx, sess); err != nil {
		log.Printf("WARNING: queue cleanup after leaving room %s failed: %v", roomID, err)
	}
	return nil
}

// errNothingToDo aborts a room transaction without side effects when the
// operation is a no-op (idempotent leave).
var errNothingToDo = errors.New("pairing: nothing to do")

// runRoomTx re-reads the room fresh, applies mutate, and writes the whole
// document back, all inside one optimistic transaction. Conflict exhaustion
// maps to ErrRaceLost like every other changed-underfoot outcome.
func (s *Service) runRoomTx(ctx context.Context, roomID string, mutate func(room *models.Room) error) error {
	err := s.store.RunTx(ctx, func(tx docstore.Tx) error {
		room, err := getRoom(tx, s.rooms(), roomID)
		if err != nil {
			return err
		}
		if err := mutate(&room); err != nil {
			return err
		}
		return tx.Set(s.rooms(), roomID, room)
	})
	if errors.Is(err, docstore.ErrConflict) {
		return ErrRaceLost
	}
	return err
}

// PairWithBot constructs a room directly in the chatting phase with the bot
// sentinel as the second member and an injected greeting, bypassing the
// invite and start-vote stages. Offline/testing convenience; the normal
// state machine's invariants are untouched because the room is born past
// them.
func (s *Service) PairWithBot(ctx context.Context, sess Session, greeting string) (string, error) {
	if !sess.valid() {
		return "", ErrUnauthenticated
	}
	now := time.Now()
	roomID := uuid.NewString()
	room := models.Room{
		RoomID:        roomID,
		Members:       []string{sess.UserID, config.BotUserID},
		CreatedAt:     now,
		LastMessageAt: now,
		Phase:         models.PhaseChatting,
		Invite:        models.Invite{To: config.BotUserID, CreatedAt: now, State: models.InviteAccepted},
		Votes:         map[string]bool{sess.UserID: true, config.BotUserID: true},
	}
	if err := s.rooms().Set(ctx, roomID, room); err != nil {
		return "", err
	}
	msg := models.Message{
		SenderID:  config.BotUserID,
		Text:      greeting,
		CreatedAt: now,
	}
	if _, err := s.messages(roomID).Add(ctx, msg); err != nil {
		log.Printf("WARNING: bot greeting for room %s failed: %v", roomID, err)
	}
	return roomID, nil
}

// GetRoom reads the current room state.
func (s *Service) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	snap, err := s.rooms().Get(ctx, roomID)
	if err != nil {
		return models.Room{}, err
	}
	if !snap.Exists() {
		return models.Room{}, ErrNotFound
	}
	var room models.Room
	if err := snap.Decode(&room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}
