package pairing

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
)

// CommitMatch is the single linearization point of a match: one optimistic
// transaction that re-reads both queue entries fresh, aborts with ErrRaceLost
// if either side left the waiting state since selection, and otherwise
// creates the room and flips both entries to matched. Of two concurrent
// attempts on the same pair exactly one commits.
func (s *Service) CommitMatch(ctx context.Context, sess Session, myEntryID, candEntryID string) (string, error) {
	if !sess.valid() {
		return "", ErrUnauthenticated
	}
	roomID := uuid.NewString()
	err := s.store.RunTx(ctx, func(tx docstore.Tx) error {
		mineSnap, err := tx.Get(s.queue(), myEntryID)
		if err != nil {
			return err
		}
		candSnap, err := tx.Get(s.queue(), candEntryID)
		if err != nil {
			return err
		}
		if !mineSnap.Exists() || !candSnap.Exists() {
			return ErrRaceLost
		}
		var mine, cand models.QueueEntry
		if err := mineSnap.Decode(&mine); err != nil {
			return err
		}
		if err := candSnap.Decode(&cand); err != nil {
			return err
		}
		if mine.Status != models.QueueWaiting || cand.Status != models.QueueWaiting {
			return ErrRaceLost
		}

		now := time.Now()
		room := models.Room{
			RoomID:        roomID,
			Members:       []string{sess.UserID},
			CreatedAt:     now,
			LastMessageAt: now,
			Phase:         models.PhasePendingAccept,
			Invite:        models.Invite{To: cand.UserID, CreatedAt: now, State: models.InvitePending},
			Votes:         map[string]bool{},
		}
		if err := tx.Set(s.rooms(), roomID, room); err != nil {
			return err
		}
		fields := map[string]any{"status": models.QueueMatched, "roomId": roomID}
		if err := tx.Update(s.queue(), myEntryID, fields); err != nil {
			return err
		}
		return tx.Update(s.queue(), candEntryID, fields)
	})
	if err != nil {
		// A transaction that exhausted its conflict retries lost the race
		// just the same: somebody else got to one of the entries first.
		if errors.Is(err, docstore.ErrConflict) {
			return "", ErrRaceLost
		}
		return "", err
	}
	return roomID, nil
}

// TryMatch runs one selection + commit attempt for the caller's entry.
// Returns "" with nil error when there is no candidate or when the commit
// lost its race; the caller decides whether to try again. No retry loop is
// built in here.
func (s *Service) TryMatch(ctx context.Context, sess Session, myEntryID string) (string, error) {
	mine, err := s.GetEntry(ctx, myEntryID)
	if err != nil {
		return "", err
	}
	if mine.UserID != sess.UserID {
		return "", ErrNotFound
	}
	if mine.Status != models.QueueWaiting {
		return "", nil
	}
	cand, err := s.SelectCandidate(ctx, mine)
	if err != nil {
		return "", err
	}
	if cand == nil {
		return "", nil
	}
	roomID, err := s.CommitMatch(ctx, sess, myEntryID, cand.EntryID)
	if errors.Is(err, ErrRaceLost) {
		log.Printf("match race lost for %s against %s, candidate gone", sess.UserID, cand.UserID)
		return "", nil
	}
	return roomID, err
}

// AwaitPhaseChange blocks until the room's phase differs from `from`, the
// timeout elapses, or ctx is cancelled. It settles exactly once: the
// subscription is torn down on whichever happens first. A timeout surfaces
// as ErrWaitTimeout, distinguishable from a decline observed as a phase.
func (s *Service) AwaitPhaseChange(ctx context.Context, roomID, from string, timeout time.Duration) (string, error) {
	snaps, stop := s.rooms().WatchDoc(ctx, roomID)
	defer stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				return "", ErrNotFound
			}
			if !snap.Exists() {
				continue
			}
			var room models.Room
			if err := snap.Decode(&room); err != nil {
				continue
			}
			if room.Phase != from {
				return room.Phase, nil
			}
		case <-timer.C:
			return "", ErrWaitTimeout
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// AwaitDecision waits for the invitee's accept/decline after CommitMatch.
// On ErrWaitTimeout the match is failed and the caller re-enters the queue.
func (s *Service) AwaitDecision(ctx context.Context, roomID string, timeout time.Duration) (string, error) {
	return s.AwaitPhaseChange(ctx, roomID, models.PhasePendingAccept, timeout)
}
