package pairing

import (
	"context"
	"sync"
	"time"

	"honbap/backend/internal/config"
	"honbap/backend/internal/models"
)

// StartHeartbeat refreshes the caller's lastActive timestamp on the queue
// entry and the presence doc every heartbeat period, so other clients can
// judge freshness. Writes are best-effort: a missed beat only risks the
// entry being treated as stale. The returned stop handle is idempotent and
// safe to call any number of times.
func (s *Service) StartHeartbeat(sess Session, entryID string) (stop func()) {
	var once sync.Once
	if s.HeartbeatDisabled || !sess.valid() {
		return func() {}
	}

	period := s.HeartbeatPeriod
	if period == 0 {
		period = config.HeartbeatPeriod
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.beat(sess, entryID)
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

func (s *Service) beat(sess Session, entryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	now := time.Now()

	// Failures are swallowed on purpose: the heartbeat must never surface
	// errors into whatever operation it runs beside.
	if entryID != "" {
		_ = s.queue().Update(ctx, entryID, map[string]any{"lastActive": now})
	}
	_ = s.presence().Set(ctx, sess.UserID, models.Presence{UserID: sess.UserID, LastActive: now})
}
