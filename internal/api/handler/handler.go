package handler

import (
	"sync"

	"honbap/backend/internal/localization"
	"honbap/backend/internal/pairing"
	"honbap/backend/internal/policy"
	"honbap/backend/internal/storage"
)

// Handler wires the engine to HTTP. Archive may be nil in local mode.
type Handler struct {
	Pairing *pairing.Service
	Policy  *policy.Service
	Archive storage.Storage
	Loc     *localization.Localizer

	// heartbeats tracks each user's running heartbeat stop handle, so
	// leave/cancel can tear the ticker down. One per user, matching the
	// at-most-one-active-entry invariant.
	mu         sync.Mutex
	heartbeats map[string]func()
}

func NewHandler(p *pairing.Service, pol *policy.Service, archive storage.Storage, loc *localization.Localizer) *Handler {
	return &Handler{
		Pairing:    p,
		Policy:     pol,
		Archive:    archive,
		Loc:        loc,
		heartbeats: make(map[string]func()),
	}
}

// trackHeartbeat replaces the user's heartbeat, stopping any previous one.
func (h *Handler) trackHeartbeat(userID string, stop func()) {
	h.mu.Lock()
	prev := h.heartbeats[userID]
	h.heartbeats[userID] = stop
	h.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// stopHeartbeat is safe to call when no heartbeat is running; stop handles
// are idempotent, so racing a concurrent stop is harmless too.
func (h *Handler) stopHeartbeat(userID string) {
	h.mu.Lock()
	stop := h.heartbeats[userID]
	delete(h.heartbeats, userID)
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}
