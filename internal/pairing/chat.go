package pairing

import (
	"context"
	"log"
	"strings"
	"time"

	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore"
	"honbap/backend/internal/models"
)

// AssertMember verifies the caller belongs to the room. A missing room is
// ErrNotFound, a foreign room ErrNotMember — both precondition errors the
// caller sees synchronously, never silently swallowed.
func (s *Service) AssertMember(ctx context.Context, sess Session, roomID string) error {
	if !sess.valid() {
		return ErrUnauthenticated
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(sess.UserID) {
		return ErrNotMember
	}
	return nil
}

// Send appends one immutable message to the room feed. Text is trimmed and
// empty messages are rejected; membership is asserted before anything is
// written. The room's lastMessageAt bump is best-effort and never fails the
// send.
func (s *Service) Send(ctx context.Context, sess Session, roomID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if err := s.AssertMember(ctx, sess, roomID); err != nil {
		return err
	}

	now := time.Now()
	msg := models.Message{
		SenderID:  sess.UserID,
		Email:     sess.Email,
		Text:      text,
		CreatedAt: now,
	}
	if _, err := s.messages(roomID).Add(ctx, msg); err != nil {
		return err
	}
	if err := s.rooms().Update(ctx, roomID, map[string]any{"lastMessageAt": now}); err != nil {
		log.Printf("WARNING: lastMessageAt bump for room %s failed: %v", roomID, err)
	}
	return nil
}

// Messages reads the current feed, ascending by time, capped at the feed
// limit.
func (s *Service) Messages(ctx context.Context, sess Session, roomID string) ([]models.Message, error) {
	if err := s.AssertMember(ctx, sess, roomID); err != nil {
		return nil, err
	}
	snaps, err := s.messages(roomID).Query(ctx, feedQuery())
	if err != nil {
		return nil, err
	}
	return decodeMessages(snaps), nil
}

// SubscribeMessages is the live feed: each delivery is the full current
// message list, replacing prior state wholesale. Membership is asserted up
// front; the stop handle is idempotent.
func (s *Service) SubscribeMessages(ctx context.Context, sess Session, roomID string) (<-chan []models.Message, func(), error) {
	if err := s.AssertMember(ctx, sess, roomID); err != nil {
		return nil, nil, err
	}
	snaps, stop := s.messages(roomID).WatchQuery(ctx, feedQuery())
	out := make(chan []models.Message, 1)
	go func() {
		defer close(out)
		for batch := range snaps {
			sendLatest(out, decodeMessages(batch))
		}
	}()
	return out, stop, nil
}

// sendLatest delivers v without ever blocking: a slow consumer sees the
// newest snapshot rather than a backlog.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// RoomTranscript reads the full feed without a membership check, for
// server-side archival of finished rooms.
func (s *Service) RoomTranscript(ctx context.Context, roomID string) ([]models.Message, error) {
	snaps, err := s.messages(roomID).Query(ctx, feedQuery())
	if err != nil {
		return nil, err
	}
	return decodeMessages(snaps), nil
}

func feedQuery() docstore.Query {
	return docstore.Query{OrderBy: "createdAt", Limit: config.MessageFeedLimit}
}

func decodeMessages(snaps []docstore.Snapshot) []models.Message {
	msgs := make([]models.Message, 0, len(snaps))
	for _, snap := range snaps {
		var m models.Message
		if err := snap.Decode(&m); err != nil {
			continue
		}
		m.MessageID = snap.ID
		msgs = append(msgs, m)
	}
	return msgs
}
