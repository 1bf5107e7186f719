package pairing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"honbap/backend/internal/docstore/memstore"
	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
)

// Collection names the engine coordinates through; tests seed them directly.
const (
	queueCol    = "matchQueue"
	profilesCol = "profiles"
)

func newEngine() (*pairing.Service, *memstore.Store) {
	store := memstore.New()
	svc := pairing.NewService(store)
	svc.HeartbeatDisabled = true
	return svc, store
}

// seedEntry writes a queue entry with sensible defaults and returns it with
// its id filled in.
func seedEntry(t *testing.T, store *memstore.Store, e models.QueueEntry) models.QueueEntry {
	t.Helper()
	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = models.QueueWaiting
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.LastActive.IsZero() {
		e.LastActive = now
	}
	require.NoError(t, store.Collection(queueCol).Set(context.Background(), e.EntryID, e))
	return e
}

// makeMatch drives two seeded users through CommitMatch and returns the
// fresh pendingAccept room with a as the creator and b as the invitee.
func makeMatch(t *testing.T, svc *pairing.Service, store *memstore.Store) (roomID string, a, b pairing.Session) {
	t.Helper()
	a = pairing.Session{UserID: "user-a", Email: "a@test"}
	b = pairing.Session{UserID: "user-b", Email: "b@test"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: a.UserID})
	eb := seedEntry(t, store, models.QueueEntry{UserID: b.UserID})

	roomID, err := svc.CommitMatch(context.Background(), a, ea.EntryID, eb.EntryID)
	require.NoError(t, err)
	require.NotEmpty(t, roomID)
	return roomID, a, b
}

// openChat advances a fresh match all the way to the chatting phase.
func openChat(t *testing.T, svc *pairing.Service, store *memstore.Store) (roomID string, a, b pairing.Session) {
	t.Helper()
	ctx := context.Background()
	roomID, a, b = makeMatch(t, svc, store)
	require.NoError(t, svc.Accept(ctx, b, roomID))
	require.NoError(t, svc.VoteStart(ctx, a, roomID, true))
	require.NoError(t, svc.VoteStart(ctx, b, roomID, true))

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	require.Equal(t, models.PhaseChatting, room.Phase)
	return roomID, a, b
}
