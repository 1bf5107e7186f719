package models

import "time"

// Queue entry statuses.
const (
	QueueWaiting = "waiting"
	QueueMatched = "matched"
	QueueLeaving = "leaving"
)

// Preferences are the filters a user enables when entering the queue.
// Matching is directional: only the filters the selecting side enabled are
// checked against the candidate.
type Preferences struct {
	Year      int    `json:"year,omitempty"`
	Major     string `json:"major,omitempty"`
	Gender    string `json:"gender,omitempty"`
	AgeMin    int    `json:"ageMin,omitempty"`
	AgeMax    int    `json:"ageMax,omitempty"`
	SameYear  bool   `json:"sameYear,omitempty"`
	SameMajor bool   `json:"sameMajor,omitempty"`
	// SameGender requires the candidate's gender to equal the caller's own.
	SameGender bool `json:"genderSame,omitempty"`
	// RequireOverlap requires a shared free-time token between both schedules.
	RequireOverlap bool `json:"requireOverlap,omitempty"`
	// OnlineOnly applies the stricter online window to the candidate's lastActive.
	OnlineOnly bool `json:"onlineOnly,omitempty"`
}

// ProfileSnapshot is the denormalized part of a profile a queue entry carries
// so that candidate filtering needs no extra reads.
type ProfileSnapshot struct {
	Age    int    `json:"age,omitempty"`
	Year   int    `json:"year,omitempty"`
	Major  string `json:"major,omitempty"`
	Gender string `json:"gender,omitempty"`
	// FreeSlots holds slot labels like "월 12-15". FreeText is the legacy
	// free-form schedule string; either representation may be present.
	FreeSlots []string `json:"freeSlots,omitempty"`
	FreeText  string   `json:"freeText,omitempty"`
}

// QueueEntry is one waiting attempt in the matchQueue collection. Entries are
// keyed by a fresh uuid per enqueue, so a user may briefly own several stale
// entries; only status=="waiting" ones within the liveness window count.
type QueueEntry struct {
	EntryID    string          `json:"-"`
	UserID     string          `json:"uid"`
	Email      string          `json:"email,omitempty"`
	Status     string          `json:"status"`
	RoomID     string          `json:"roomId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	LastActive time.Time       `json:"lastActive"`
	Filter     Preferences     `json:"filter"`
	Profile    ProfileSnapshot `json:"profile"`
}
