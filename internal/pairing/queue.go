package pairing

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
)

// Enter puts the caller into the waiting queue and returns the new entry id.
// Any previous entries of the same user are removed first, so a user owns at
// most one active entry. The profile snapshot is denormalized into the entry;
// a missing profile is tolerated.
func (s *Service) Enter(ctx context.Context, sess Session, prefs models.Preferences) (string, error) {
	if !sess.valid() {
		return "", ErrUnauthenticated
	}

	var profile models.Profile
	if snap, err := s.profiles().Get(ctx, sess.UserID); err == nil && snap.Exists() {
		if err := snap.Decode(&profile); err != nil {
			log.Printf("WARNING: corrupt profile for %s: %v", sess.UserID, err)
		}
	}

	if err := s.Leave(ctx, sess); err != nil {
		return "", err
	}

	now := time.Now()
	entry := models.QueueEntry{
		UserID:     sess.UserID,
		Email:      sess.Email,
		Status:     models.QueueWaiting,
		CreatedAt:  now,
		LastActive: now,
		Filter:     prefs,
		Profile:    profile.Snapshot(),
	}
	entryID := uuid.NewString()
	if err := s.queue().Set(ctx, entryID, entry); err != nil {
		return "", err
	}
	return entryID, nil
}

// Leave removes every queue entry owned by the caller. Entries are keyed by
// a fresh id per enqueue, so zero, one, or several stale entries may exist;
// deleting nothing is not an error.
func (s *Service) Leave(ctx context.Context, sess Session) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	snaps, err := s.queue().Query(ctx, docstore.Query{Field: "uid", Equals: sess.UserID})
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if err := s.queue().Delete(ctx, snap.ID); err != nil {
			return err
		}
	}
	return nil
}

// MarkLeaving degrades the caller's entries to the "leaving" status without
// deleting them, as a soft exit signal for peers mid-selection.
func (s *Service) MarkLeaving(ctx context.Context, sess Session) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	snaps, err := s.queue().Query(ctx, docstore.Query{Field: "uid", Equals: sess.UserID})
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if err := s.queue().Update(ctx, snap.ID, map[string]any{"status": models.QueueLeaving}); err != nil {
			return err
		}
	}
	return nil
}

// GetEntry reads one queue entry by id.
func (s *Service) GetEntry(ctx context.Context, entryID string) (models.QueueEntry, error) {
	snap, err := s.queue().Get(ctx, entryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if !snap.Exists() {
		return models.QueueEntry{}, ErrNotFound
	}
	var entry models.QueueEntry
	if err := snap.Decode(&entry); err != nil {
		return models.QueueEntry{}, err
	}
	entry.EntryID = snap.ID
	return entry, nil
}

// WatchEntry is a live subscription on the caller's own queue entry, so a
// client can observe the waiting -> matched flip without polling. Each value
// replaces the previous state wholesale; the channel closes once stopped or
// after the entry is deleted.
func (s *Service) WatchEntry(ctx context.Context, entryID string) (<-chan models.QueueEntry, func()) {
	snaps, stop := s.queue().WatchDoc(ctx, entryID)
	out := make(chan models.QueueEntry, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			if !snap.Exists() {
				continue
			}
			var entry models.QueueEntry
			if err := snap.Decode(&entry); err != nil {
				continue
			}
			entry.EntryID = snap.ID
			sendLatest(out, entry)
		}
	}()
	return out, stop
}
