package models

import "time"

// Room phases. Transitions only move forward along the graph:
// pendingAccept -> startCheck -> chatting, with declined / startDeclined /
// ended as terminal states.
const (
	PhasePendingAccept = "pendingAccept"
	PhaseStartCheck    = "startCheck"
	PhaseChatting      = "chatting"
	PhaseDeclined      = "declined"
	PhaseStartDeclined = "startDeclined"
	PhaseEnded         = "ended"
)

// Invite acceptance states.
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

// Invite names the second party of a match and tracks their decision.
type Invite struct {
	To        string    `json:"to"`
	CreatedAt time.Time `json:"createdAt"`
	State     string    `json:"state"`
}

// Room is one matched pair's shared document. Both clients drive the
// lifecycle through transactional writes of this single doc and observe each
// other via live subscriptions on it.
type Room struct {
	RoomID        string    `json:"roomId"`
	Members       []string  `json:"members"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Phase         string    `json:"phase"`
	Invite        Invite    `json:"invite"`
	// Votes records each member's start vote; presence of a key means the
	// member has voted, the value is yes/no. Re-voting overwrites.
	Votes map[string]bool `json:"votes,omitempty"`
}

// HasMember reports whether uid is currently in the room.
func (r Room) HasMember(uid string) bool {
	for _, m := range r.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// Terminal reports whether the room can no longer change phase.
func (r Room) Terminal() bool {
	switch r.Phase {
	case PhaseDeclined, PhaseStartDeclined, PhaseEnded:
		return true
	}
	return false
}
