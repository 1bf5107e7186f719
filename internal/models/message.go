package models

import "time"

// Message is one chat utterance in a room's messages sub-collection.
// Immutable once written; ordered by CreatedAt for display.
type Message struct {
	MessageID string    `json:"-"`
	SenderID  string    `json:"uid"`
	Email     string    `json:"email,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
