package pairing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
)

func TestAcceptAdvancesToStartCheck(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, b := makeMatch(t, svc, store)

	require.NoError(t, svc.Accept(ctx, b, roomID))

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStartCheck, room.Phase)
	assert.Equal(t, []string{a.UserID, b.UserID}, room.Members)
	assert.Equal(t, models.InviteAccepted, room.Invite.State)
}

func TestAcceptOnlyByInvitee(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, _ := makeMatch(t, svc, store)

	assert.ErrorIs(t, svc.Accept(ctx, a, roomID), pairing.ErrNotMember)
	assert.ErrorIs(t, svc.Accept(ctx, pairing.Session{UserID: "stranger"}, roomID), pairing.ErrNotMember)
}

func TestAcceptAfterDeclineLosesRace(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, _, b := makeMatch(t, svc, store)

	require.NoError(t, svc.Decline(ctx, b, roomID))
	assert.ErrorIs(t, svc.Accept(ctx, b, roomID), pairing.ErrRaceLost,
		"the phase guard rejects a second decision")
}

func TestDeclineAfterAcceptLosesRace(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, _, b := makeMatch(t, svc, store)

	require.NoError(t, svc.Accept(ctx, b, roomID))
	assert.ErrorIs(t, svc.Decline(ctx, b, roomID), pairing.ErrRaceLost,
		"a room never revisits the invite decision")

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStartCheck, room.Phase)
}

func TestDeclineTerminatesAndPenalizes(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, _, b := makeMatch(t, svc, store)

	require.NoError(t, svc.Decline(ctx, b, roomID))

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDeclined, room.Phase)
	assert.Equal(t, models.InviteDeclined, room.Invite.State)
	assert.True(t, room.Terminal())

	rec, err := svc.GetReputation(ctx, b.UserID)
	require.NoError(t, err)
	assert.Equal(t, -1, rec.PenaltyScore)
	assert.InDelta(t, config.InitialTemp, rec.HonbapTemp, 0.001, "declining costs score, not temperature")
}

func TestVoteStartUnanimousYes(t *testing.T) {
	// Vote application is commutative: either arrival order lands on
	// chatting.
	for _, aFirst := range []bool{true, false} {
		svc, store := newEngine()
		ctx := context.Background()
		roomID, a, b := makeMatch(t, svc, store)
		require.NoError(t, svc.Accept(ctx, b, roomID))

		voters := []pairing.Session{a, b}
		if !aFirst {
			voters = []pairing.Session{b, a}
		}
		for _, v := range voters {
			require.NoError(t, svc.VoteStart(ctx, v, roomID, true))
		}

		room, err := svc.GetRoom(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseChatting, room.Phase)
	}
}

func TestVoteStartAnyNoDeclines(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, b := makeMatch(t, svc, store)
	require.NoError(t, svc.Accept(ctx, b, roomID))

	require.NoError(t, svc.VoteStart(ctx, a, roomID, true))
	require.NoError(t, svc.VoteStart(ctx, b, roomID, false))

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStartDeclined, room.Phase)

	recB, err := svc.GetReputation(ctx, b.UserID)
	require.NoError(t, err)
	assert.Equal(t, -1, recB.PenaltyScore, "the no voter is penalized")

	recA, err := svc.GetReputation(ctx, a.UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, recA.PenaltyScore, "the yes voter is not")
}

func TestVoteStartTallyWaitsForAll(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, b := makeMatch(t, svc, store)
	require.NoError(t, svc.Accept(ctx, b, roomID))

	require.NoError(t, svc.VoteStart(ctx, a, roomID, false))

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseStartCheck, room.Phase, "no tally until every member voted")
}

func TestVoteStartRevote(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, b := makeMatch(t, svc, store)
	require.NoError(t, svc.Accept(ctx, b, roomID))

	// Repeating the same no vote never double-counts the penalty.
	require.NoError(t, svc.VoteStart(ctx, a, roomID, false))
	require.NoError(t, svc.VoteStart(ctx, a, roomID, false))
	rec, err := svc.GetReputation(ctx, a.UserID)
	require.NoError(t, err)
	assert.Equal(t, -1, rec.PenaltyScore)

	// A flip to yes overwrites the recorded vote, so the final tally is
	// unanimous.
	require.NoError(t, svc.VoteStart(ctx, a, roomID, true))
	require.NoError(t, svc.VoteStart(ctx, b, roomID, true))
	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseChatting, room.Phase)
}

func TestVoteStartNonMember(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, _, b := makeMatch(t, svc, store)
	require.NoError(t, svc.Accept(ctx, b, roomID))

	err := svc.VoteStart(ctx, pairing.Session{UserID: "stranger"}, roomID, true)
	assert.ErrorIs(t, err, pairing.ErrNotMember)
}

func TestVoteStartWrongPhase(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, _ := makeMatch(t, svc, store)

	err := svc.VoteStart(ctx, a, roomID, true)
	assert.ErrorIs(t, err, pairing.ErrRaceLost, "voting before the invite is accepted")
}

func TestLeaveRoomEndsWhenEmpty(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, b := openChat(t, svc, store)

	require.NoError(t, svc.LeaveRoom(ctx, a, roomID))
	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseChatting, room.Phase, "one member remains, the room lives on")
	assert.Equal(t, []string{b.UserID}, room.Members)

	require.NoError(t, svc.LeaveRoom(ctx, b, roomID))
	room, err = svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnded, room.Phase)
	assert.Empty(t, room.Members)
}

func TestLeaveChattingRoomCostsTemperature(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, _ := openChat(t, svc, store)

	require.NoError(t, svc.LeaveRoom(ctx, a, roomID))

	rec, err := svc.GetReputation(ctx, a.UserID)
	require.NoError(t, err)
	assert.InDelta(t, config.InitialTemp-config.AbandonTempLoss, rec.HonbapTemp, 0.001)
	assert.Equal(t, 0, rec.PenaltyScore, "abandonment costs temperature, not score")
}

func TestLeaveBeforeChattingIsFree(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, b := makeMatch(t, svc, store)
	require.NoError(t, svc.Accept(ctx, b, roomID))

	require.NoError(t, svc.LeaveRoom(ctx, a, roomID))

	rec, err := svc.GetReputation(ctx, a.UserID)
	require.NoError(t, err)
	assert.InDelta(t, config.InitialTemp, rec.HonbapTemp, 0.001)
}

func TestLeaveRoomIdempotent(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, _ := openChat(t, svc, store)

	require.NoError(t, svc.LeaveRoom(ctx, a, roomID))
	require.NoError(t, svc.LeaveRoom(ctx, a, roomID), "a second leave is a no-op")

	rec, err := svc.GetReputation(ctx, a.UserID)
	require.NoError(t, err)
	assert.InDelta(t, config.InitialTemp-config.AbandonTempLoss, rec.HonbapTemp, 0.001,
		"the penalty is not booked twice")
}

func TestLeaveMissingRoom(t *testing.T) {
	svc, _ := newEngine()
	assert.NoError(t, svc.LeaveRoom(context.Background(), pairing.Session{UserID: "a"}, "gone"))
}

func TestLeaveRoomClearsQueueEntries(t *testing.T) {
	svc, store := newEngine()
	ctx := context.Background()
	roomID, a, _ := openChat(t, svc, store)
	seedEntry(t, store, models.QueueEntry{UserID: a.UserID, Status: models.QueueMatched, RoomID: roomID})

	require.NoError(t, svc.LeaveRoom(ctx, a, roomID))

	snaps, err := store.Collection(queueCol).Query(ctx, docstore.Query{Field: "uid", Equals: a.UserID})
	require.NoError(t, err)
	assert.Empty(t, snaps, "no stale matched entry survives leaving the room")
}

func TestPairWithBot(t *testing.T) {
	svc, _ := newEngine()
	ctx := context.Background()
	a := pairing.Session{UserID: "a"}

	roomID, err := svc.PairWithBot(ctx, a, "뭐 드시고 싶으세요?")
	require.NoError(t, err)

	room, err := svc.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseChatting, room.Phase, "bot rooms skip invite and start check")
	assert.ElementsMatch(t, []string{a.UserID, config.BotUserID}, room.Members)

	msgs, err := svc.Messages(ctx, a, roomID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, config.BotUserID, msgs[0].SenderID)
	assert.Equal(t, "뭐 드시고 싶으세요?", msgs[0].Text)
}

func TestGetRoomMissing(t *testing.T) {
	svc, _ := newEngine()
	_, err := svc.GetRoom(context.Background(), "nope")
	assert.ErrorIs(t, err, pairing.ErrNotFound)
}
