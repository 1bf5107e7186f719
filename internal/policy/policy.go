// Package policy is a consumer of the penalty ledger. The engine itself
// never reads reputation to gate matching; this service decides when the
// accumulated score or temperature crosses the exclusion thresholds and
// applies an escalating ban.
package policy

import (
	"context"
	"log"

	"honbap/backend/internal/config"
	"honbap/backend/internal/pairing"
	"honbap/backend/internal/storage"
)

type Service struct {
	Pairing *pairing.Service
	Store   storage.Storage
}

func NewService(p *pairing.Service, s storage.Storage) *Service {
	return &Service{Pairing: p, Store: s}
}

// CheckForBan reads the user's ledger and bans them if either the penalty
// score fell below the threshold or the honbap temperature froze under it.
// Repeat offenders get escalating durations.
func (s *Service) CheckForBan(ctx context.Context, userID string) error {
	rec, err := s.Pairing.GetReputation(ctx, userID)
	if err != nil {
		return err
	}
	if rec.PenaltyScore > config.BanThresholdScore && rec.HonbapTemp > config.BanThresholdTemp {
		return nil
	}

	banned, err := s.Store.IsUserBanned(userID)
	if err != nil {
		return err
	}
	if banned {
		return nil
	}

	duration, err := s.Store.EscalateBan(userID)
	if err != nil {
		return err
	}
	log.Printf("INFO: banning %s for %s (score=%d temp=%.1f)", userID, duration, rec.PenaltyScore, rec.HonbapTemp)
	return s.Store.BanUser(userID, duration)
}
