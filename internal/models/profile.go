package models

import "time"

// Profile is the externally-owned profiles/<uid> document. The engine only
// reads it to denormalize a snapshot into the queue entry on enqueue.
type Profile struct {
	Year      int       `json:"year,omitempty"`
	Age       int       `json:"age,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	Major     string    `json:"major,omitempty"`
	MBTI      string    `json:"mbti,omitempty"`
	Content   string    `json:"content,omitempty"`
	FreeSlots []string  `json:"freeSlots,omitempty"`
	FreeText  string    `json:"freeText,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns the filter-relevant subset carried by queue entries.
func (p Profile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		Age:       p.Age,
		Year:      p.Year,
		Major:     p.Major,
		Gender:    p.Gender,
		FreeSlots: p.FreeSlots,
		FreeText:  p.FreeText,
	}
}

// Presence is the presence/<uid> document, written only by the heartbeat.
type Presence struct {
	UserID     string    `json:"uid"`
	LastActive time.Time `json:"lastActive"`
}
