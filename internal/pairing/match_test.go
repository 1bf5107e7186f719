package pairing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
)

func TestCommitMatchCreatesRoomAndFlipsEntries(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	a := pairing.Session{UserID: "a"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a"})
	eb := seedEntry(t, store, models.QueueEntry{UserID: "b"})

	roomID, err := svc.CommitMatch(ctx, a, ea.EntryID, eb.EntryID)
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhasePendingAccept, room.Phase)
	assert.Equal(t, []string{"a"}, room.Members, "invitee joins only on accept")
	assert.Equal(t, "b", room.Invite.To)
	assert.Equal(t, models.InvitePending, room.Invite.State)

	for _, id := range []string{ea.EntryID, eb.EntryID} {
		entry, err := svc.GetEntry(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.QueueMatched, entry.Status)
		assert.Equal(t, roomID, entry.RoomID)
	}
}

// TestCommitMatchMutualRace: both sides select each other and commit at the
// same time. Exactly one transaction wins; the loser observes the flipped
// statuses and reports a lost race.
func TestCommitMatchMutualRace(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	a := pairing.Session{UserID: "a"}
	b := pairing.Session{UserID: "b"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a"})
	eb := seedEntry(t, store, models.QueueEntry{UserID: "b"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	rooms := make([]string, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		rooms[0], errs[0] = svc.CommitMatch(ctx, a, ea.EntryID, eb.EntryID)
	}()
	go func() {
		defer wg.Done()
		rooms[1], errs[1] = svc.CommitMatch(ctx, b, eb.EntryID, ea.EntryID)
	}()
	wg.Wait()

	var wins, losses int
	for i := range errs {
		switch {
		case errs[i] == nil:
			wins++
			assert.NotEmpty(t, rooms[i])
		case assert.ErrorIs(t, errs[i], pairing.ErrRaceLost):
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one side commits")
	assert.Equal(t, 1, losses)
}

// A user enqueues wanting a same-gender partner; a filterless same-gender
// user is already waiting. Selection finds them and the commit produces a
// pendingAccept room with both entries flipped to the same room id.
func TestSameGenderPairEndToEnd(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()

	y := seedEntry(t, store, models.QueueEntry{
		UserID:  "y",
		Profile: models.ProfileSnapshot{Gender: "F"},
	})
	x := seedEntry(t, store, models.QueueEntry{
		UserID:  "x",
		Filter:  models.Preferences{Gender: "F", SameGender: true},
		Profile: models.ProfileSnapshot{Gender: "F"},
	})

	cand, err := svc.SelectCandidate(ctx, x)
	require.NoError(t, err)
	require.NotNil(t, cand)
	require.Equal(t, "y", cand.UserID)

	roomID, err := svc.CommitMatch(ctx, pairing.Session{UserID: "x"}, x.EntryID, cand.EntryID)
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhasePendingAccept, room.Phase)
	assert.Equal(t, "y", room.Invite.To)
	for _, id := range []string{x.EntryID, y.EntryID} {
		entry, err := svc.GetEntry(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.QueueMatched, entry.Status)
		assert.Equal(t, roomID, entry.RoomID)
	}
}

func TestCommitMatchCandidateGone(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	a := pairing.Session{UserID: "a"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a"})
	eb := seedEntry(t, store, models.QueueEntry{UserID: "b"})
	require.NoError(t, store.Collection(queueCol).Delete(ctx, eb.EntryID))

	_, err := svc.CommitMatch(ctx, a, ea.EntryID, eb.EntryID)
	assert.ErrorIs(t, err, pairing.ErrRaceLost)
}

func TestCommitMatchCandidateNoLongerWaiting(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	a := pairing.Session{UserID: "a"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a"})
	eb := seedEntry(t, store, models.QueueEntry{UserID: "b", Status: models.QueueMatched})

	_, err := svc.CommitMatch(ctx, a, ea.EntryID, eb.EntryID)
	assert.ErrorIs(t, err, pairing.ErrRaceLost)
}

func TestTryMatchNoCandidate(t *testing.T) {
	svc, store := newEngine()
	a := pairing.Session{UserID: "a"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a"})

	roomID, err := svc.TryMatch(context.Background(), a, ea.EntryID)
	require.NoError(t, err)
	assert.Empty(t, roomID, "an empty queue is not an error")
}

func TestTryMatchPairsTwoWaiters(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	a := pairing.Session{UserID: "a"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a"})
	eb := seedEntry(t, store, models.QueueEntry{UserID: "b"})

	roomID, err := svc.TryMatch(ctx, a, ea.EntryID)
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	entry, err := svc.GetEntry(ctx, eb.EntryID)
	require.NoError(t, err)
	assert.Equal(t, roomID, entry.RoomID)
}

func TestTryMatchForeignEntryRejected(t *testing.T) {
	svc, store := newEngine()
	eb := seedEntry(t, store, models.QueueEntry{UserID: "b"})

	_, err := svc.TryMatch(context.Background(), pairing.Session{UserID: "a"}, eb.EntryID)
	assert.ErrorIs(t, err, pairing.ErrNotFound)
}

func TestTryMatchAlreadyMatchedEntryIsNoop(t *testing.T) {
	svc, store := newEngine()
	a := pairing.Session{UserID: "a"}
	ea := seedEntry(t, store, models.QueueEntry{UserID: "a", Status: models.QueueMatched, RoomID: "r"})
	seedEntry(t, store, models.QueueEntry{UserID: "b"})

	roomID, err := svc.TryMatch(context.Background(), a, ea.EntryID)
	require.NoError(t, err)
	assert.Empty(t, roomID)
}

func TestAwaitPhaseChangeObservesAccept(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, _, b := makeMatch(t, svc, store)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = svc.Accept(ctx, b, roomID)
	}()

	phase, err := svc.AwaitDecision(ctx, roomID, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStartCheck, phase)
}

func TestAwaitPhaseChangeTimeout(t *testing.T) {
	svc, store := newEngine()
	roomID, _, _ := makeMatch(t, svc, store)

	_, err := svc.AwaitDecision(context.Background(), roomID, 30*time.Millisecond)
	assert.ErrorIs(t, err, pairing.ErrWaitTimeout)
}

func TestAwaitPhaseChangeCancelled(t *testing.T) {
	svc, store := newEngine()
	roomID, _, _ := makeMatch(t, svc, store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := svc.AwaitPhaseChange(ctx, roomID, models.PhasePendingAccept, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
