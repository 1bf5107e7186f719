package pairing

import (
	"context"
	"log"
	"time"

	"honbap/backend/internal/analysis"
	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
)

// PenaltyKind names a behavioral penalty.
type PenaltyKind string

const (
	// PenaltyDecline: refusing an invite while it is still pending.
	PenaltyDecline PenaltyKind = "decline"
	// PenaltyStartDecline: voting no in the start check.
	PenaltyStartDecline PenaltyKind = "startDecline"
	// PenaltyAbandon: leaving a room after it reached the chatting phase.
	PenaltyAbandon PenaltyKind = "abandon"
)

// ApplyPenalty books a penalty against the user's reputation record inside a
// read-modify-write transaction. Declines subtract their weight from
// penaltyScore, which has no floor; abandonment costs honbap temperature,
// clamped at zero. Records are never deleted and nothing in this engine
// reads them to gate matching — policy consumers decide thresholds.
func (s *Service) ApplyPenalty(ctx context.Context, userID string, kind PenaltyKind) error {
	return s.store.RunTx(ctx, func(tx docstore.Tx) error {
		snap, err := tx.Get(s.ledger(), userID)
		if err != nil {
			return err
		}
		rec := models.ReputationRecord{UserID: userID, HonbapTemp: config.InitialTemp}
		if snap.Exists() {
			if err := snap.Decode(&rec); err != nil {
				return err
			}
		}

		switch kind {
		case PenaltyAbandon:
			rec.HonbapTemp -= config.AbandonTempLoss
			if rec.HonbapTemp < config.MinTemp {
				rec.HonbapTemp = config.MinTemp
			}
		default:
			rec.PenaltyScore -= analysis.PenaltyWeight(string(kind))
		}
		rec.UpdatedAt = time.Now()
		return tx.Set(s.ledger(), userID, rec)
	})
}

// GetReputation reads a user's ledger record. A user with no record yet gets
// the zero ledger at the initial temperature.
func (s *Service) GetReputation(ctx context.Context, userID string) (models.ReputationRecord, error) {
	snap, err := s.ledger().Get(ctx, userID)
	if err != nil {
		return models.ReputationRecord{}, err
	}
	rec := models.ReputationRecord{UserID: userID, HonbapTemp: config.InitialTemp}
	if snap.Exists() {
		if err := snap.Decode(&rec); err != nil {
			return models.ReputationRecord{}, err
		}
	}
	return rec, nil
}

// penalize is the fire-and-forget form used by lifecycle transitions: the
// transition itself already committed, so a failed penalty write is logged,
// not surfaced.
func (s *Service) penalize(ctx context.Context, userID string, kind PenaltyKind) {
	if err := s.ApplyPenalty(ctx, userID, kind); err != nil {
		log.Printf("ERROR: failed to apply %s penalty for %s: %v", kind, userID, err)
	}
}
