// Package pairing is the matchmaking and room-lifecycle engine. Every user
// runs an independent client; the shared document store is the only
// coordination substrate, and all multi-party transitions are optimistic
// transactions that re-validate preconditions against fresh reads.
package pairing

import (
	"errors"
	"time"

	"honbap/backend/internal/docstore"
)

// Store collection names.
const (
	colQueue      = "matchQueue"
	colRooms      = "rooms"
	colProfiles   = "profiles"
	colPresence   = "presence"
	colReputation = "reputation"
	subMessages   = "messages"
)

var (
	ErrUnauthenticated = errors.New("pairing: login required")
	ErrNotFound        = errors.New("pairing: no such room or queue entry")
	ErrNotMember       = errors.New("pairing: not a member of this room")
	ErrEmptyMessage    = errors.New("pairing: empty message")
	// ErrRaceLost marks a transaction whose preconditions changed underfoot.
	// It is a normal outcome, not a failure: the caller re-selects.
	ErrRaceLost = errors.New("pairing: lost the race, state changed")
	// ErrWaitTimeout marks a bounded wait that elapsed without the expected
	// event. Distinguishable from a true decline.
	ErrWaitTimeout = errors.New("pairing: wait timed out")
)

// Session identifies the authenticated caller. Every operation takes one
// explicitly; there is no ambient current-user state.
type Session struct {
	UserID string
	Email  string
}

func (s Session) valid() bool { return s.UserID != "" }

// Service is the engine facade. One instance serves any number of sessions.
type Service struct {
	store docstore.Store

	// HeartbeatDisabled turns StartHeartbeat into a no-op (local dev mode,
	// where periodic writes would only cost money). Peers just see the
	// entry go stale.
	HeartbeatDisabled bool
	// HeartbeatPeriod overrides config.HeartbeatPeriod when non-zero (tests).
	HeartbeatPeriod time.Duration
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

func (s *Service) queue() docstore.Collection    { return s.store.Collection(colQueue) }
func (s *Service) rooms() docstore.Collection    { return s.store.Collection(colRooms) }
func (s *Service) profiles() docstore.Collection { return s.store.Collection(colProfiles) }
func (s *Service) presence() docstore.Collection { return s.store.Collection(colPresence) }
func (s *Service) ledger() docstore.Collection   { return s.store.Collection(colReputation) }

func (s *Service) messages(roomID string) docstore.Collection {
	return s.store.Collection(colRooms, roomID, subMessages)
}
