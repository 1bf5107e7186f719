package pairing

import (
	"context"
	"sort"
	"strings"
	"time"

	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
)

// SelectCandidate fetches up to config.QueueScanLimit waiting entries (the
// store only supports this one equality predicate server-side) and filters
// them locally: liveness, the caller's enabled preference toggles, and
// schedule overlap. Matching is directional: only the CALLER's filters are
// enforced here — the candidate's own filters get their turn when that
// client selects. Survivors are taken oldest-waiting-first; no candidate is
// (nil, nil), not an error.
func (s *Service) SelectCandidate(ctx context.Context, mine models.QueueEntry) (*models.QueueEntry, error) {
	snaps, err := s.queue().Query(ctx, docstore.Query{
		Field:  "status",
		Equals: models.QueueWaiting,
		Limit:  config.QueueScanLimit,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var cands []models.QueueEntry
	for _, snap := range snaps {
		var cand models.QueueEntry
		if err := snap.Decode(&cand); err != nil {
			continue
		}
		cand.EntryID = snap.ID
		if cand.EntryID == mine.EntryID || cand.UserID == mine.UserID {
			continue
		}
		if cand.Status != models.QueueWaiting {
			continue
		}
		// Liveness: crashed or tab-closed peers stop heartbeating and age out.
		if now.Sub(cand.LastActive) > config.MatchTTL {
			continue
		}
		if mine.Filter.OnlineOnly && now.Sub(cand.LastActive) > config.OnlineWindow {
			continue
		}
		if !passesFilter(mine, cand) {
			continue
		}
		if mine.Filter.RequireOverlap && !schedulesOverlap(mine.Profile, cand.Profile) {
			continue
		}
		cands = append(cands, cand)
	}

	if len(cands) == 0 {
		return nil, nil
	}
	// Oldest waiting first; entry id breaks ties so the pick is
	// deterministic for a fixed queue snapshot.
	sort.Slice(cands, func(i, j int) bool {
		if !cands[i].CreatedAt.Equal(cands[j].CreatedAt) {
			return cands[i].CreatedAt.Before(cands[j].CreatedAt)
		}
		return cands[i].EntryID < cands[j].EntryID
	})
	return &cands[0], nil
}

// passesFilter checks the caller's enabled must-match fields against the
// candidate's profile snapshot. A filter on a field the candidate left empty
// passes, like the original product behaved.
func passesFilter(mine, cand models.QueueEntry) bool {
	f := mine.Filter
	p := cand.Profile

	if f.Gender != "" && p.Gender != "" && f.Gender != p.Gender {
		return false
	}
	if f.SameGender && mine.Profile.Gender != "" && p.Gender != "" && mine.Profile.Gender != p.Gender {
		return false
	}
	if f.Major != "" && p.Major != "" && f.Major != p.Major {
		return false
	}
	if f.SameMajor && mine.Profile.Major != "" && p.Major != "" && mine.Profile.Major != p.Major {
		return false
	}
	if f.Year != 0 && p.Year != 0 && f.Year != p.Year {
		return false
	}
	if f.SameYear && mine.Profile.Year != 0 && p.Year != 0 && mine.Profile.Year != p.Year {
		return false
	}
	if f.AgeMin != 0 && p.Age != 0 && p.Age < f.AgeMin {
		return false
	}
	if f.AgeMax != 0 && p.Age != 0 && p.Age > f.AgeMax {
		return false
	}
	return true
}

// weekdayChars covers both hangul day labels and a latin fallback.
const weekdayChars = "월화수목금토일MTWRFSU"

// schedulesOverlap reports whether two free-time representations share a
// common token. When both sides carry slot labels the check is exact set
// intersection; otherwise it degrades to scanning for a weekday character
// present in both sides' combined schedule text.
func schedulesOverlap(a, b models.ProfileSnapshot) bool {
	if len(a.FreeSlots) > 0 && len(b.FreeSlots) > 0 {
		set := make(map[string]bool, len(a.FreeSlots))
		for _, slot := range a.FreeSlots {
			set[strings.TrimSpace(slot)] = true
		}
		for _, slot := range b.FreeSlots {
			if set[strings.TrimSpace(slot)] {
				return true
			}
		}
		return false
	}
	at := scheduleText(a)
	bt := scheduleText(b)
	for _, day := range weekdayChars {
		if strings.ContainsRune(at, day) && strings.ContainsRune(bt, day) {
			return true
		}
	}
	return false
}

// SharedFreeSlots returns the slot labels two users' profiles have in
// common, for archival. Either profile may be missing.
func (s *Service) SharedFreeSlots(ctx context.Context, uidA, uidB string) []string {
	var a, b models.Profile
	if snap, err := s.profiles().Get(ctx, uidA); err != nil || !snap.Exists() || snap.Decode(&a) != nil {
		return nil
	}
	if snap, err := s.profiles().Get(ctx, uidB); err != nil || !snap.Exists() || snap.Decode(&b) != nil {
		return nil
	}
	set := make(map[string]bool, len(a.FreeSlots))
	for _, slot := range a.FreeSlots {
		set[strings.TrimSpace(slot)] = true
	}
	var shared []string
	for _, slot := range b.FreeSlots {
		if set[strings.TrimSpace(slot)] {
			shared = append(shared, strings.TrimSpace(slot))
		}
	}
	return shared
}

func scheduleText(p models.ProfileSnapshot) string {
	if len(p.FreeSlots) > 0 {
		return strings.Join(p.FreeSlots, ",")
	}
	return p.FreeText
}
