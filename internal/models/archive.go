package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ArchivedRoom is the PostgreSQL record of a finished room, written when a
// room reaches a terminal phase.
type ArchivedRoom struct {
	// RoomID is the store document id of the room (UUID).
	RoomID string `gorm:"primaryKey"`
	// User1ID is the initiator, User2ID the invitee.
	User1ID string
	User2ID string
	// Phase is the terminal phase the room ended in.
	Phase string
	// SharedSlots are the free-time slot labels both members had in common.
	SharedSlots pq.StringArray `gorm:"type:text[]"`
	StartedAt   time.Time
	EndedAt     time.Time
}

// ChatArchive is one archived chat message.
// The embedded gorm.Model provides ID, CreatedAt, UpdatedAt, and DeletedAt.
type ChatArchive struct {
	gorm.Model

	RoomID   string `gorm:"type:uuid;not null;index:idx_room_msg"`
	SenderID string `gorm:"type:text;not null;index:idx_room_msg"`
	Content  string `gorm:"type:text;not null"`
	// SentAt is the store-side creation timestamp of the original message.
	SentAt time.Time
}
