package models

import "time"

// ReputationRecord is the per-user penalty ledger. PenaltyScore only ever
// decreases and has no floor; HonbapTemp is a warmth score clamped at zero.
// Records accumulate for the lifetime of the account and are never deleted.
type ReputationRecord struct {
	UserID       string    `json:"uid"`
	PenaltyScore int       `json:"penaltyScore"`
	HonbapTemp   float64   `json:"honbapTemp"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
