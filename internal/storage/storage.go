// Package storage is the PostgreSQL/Redis periphery of the engine: finished
// rooms get archived to Postgres for moderation and analytics, and Redis
// carries the ban flags the penalty-ledger policy writes.
package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"honbap/backend/internal/config"
	"honbap/backend/internal/models"
)

type Storage interface {
	ArchiveRoom(room models.Room, msgs []models.Message, sharedSlots []string) error
	GetTranscript(roomID string) ([]models.ChatArchive, error)
	GetArchivedRoom(roomID string) (*models.ArchivedRoom, error)

	IsUserBanned(uid string) (bool, error)
	BanUser(uid string, d time.Duration) error
	UnbanUser(uid string) error
	EscalateBan(uid string) (time.Duration, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// ArchiveRoom writes the terminal room and its transcript to PostgreSQL.
// Safe to call again for the same room; the transcript is only written once.
func (s *Service) ArchiveRoom(room models.Room, msgs []models.Message, sharedSlots []string) error {
	if !room.Terminal() {
		return errors.New("room is not in a terminal phase")
	}
	user1 := ""
	if len(room.Members) > 0 {
		user1 = room.Members[0]
	}
	rec := models.ArchivedRoom{
		RoomID:      room.RoomID,
		User1ID:     user1,
		User2ID:     room.Invite.To,
		Phase:       room.Phase,
		SharedSlots: sharedSlots,
		StartedAt:   room.CreatedAt,
		EndedAt:     time.Now(),
	}
	if err := s.DB.Save(&rec).Error; err != nil {
		log.Printf("ERROR: failed to archive room %s: %v", room.RoomID, err)
		return err
	}

	var existing int64
	s.DB.Model(&models.ChatArchive{}).Where("room_id = ?", room.RoomID).Count(&existing)
	if existing > 0 {
		return nil
	}
	for _, m := range msgs {
		row := models.ChatArchive{
			RoomID:   room.RoomID,
			SenderID: m.SenderID,
			Content:  m.Text,
			SentAt:   m.CreatedAt,
		}
		if err := s.DB.Create(&row).Error; err != nil {
			log.Printf("ERROR: failed to archive message in room %s: %v", room.RoomID, err)
			return err
		}
	}
	return nil
}

// GetTranscript returns the archived messages of a room, oldest first.
func (s *Service) GetTranscript(roomID string) ([]models.ChatArchive, error) {
	var rows []models.ChatArchive
	err := s.DB.Where("room_id = ?", roomID).Order("sent_at asc").Find(&rows).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rows, nil
	}
	if err != nil {
		log.Printf("ERROR: failed to load transcript for room %s: %v", roomID, err)
		return nil, err
	}
	return rows, nil
}

func (s *Service) GetArchivedRoom(roomID string) (*models.ArchivedRoom, error) {
	var rec models.ArchivedRoom
	err := s.DB.Where("room_id = ?", roomID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsUserBanned checks the ban flag in Redis.
func (s *Service) IsUserBanned(uid string) (bool, error) {
	status, err := s.Redis.Get(s.Ctx, "ban:"+uid).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// BanUser sets the ban flag; d == 0 means no expiry.
func (s *Service) BanUser(uid string, d time.Duration) error {
	return s.Redis.Set(s.Ctx, "ban:"+uid, "active", d).Err()
}

func (s *Service) UnbanUser(uid string) error {
	if err := s.Redis.Del(s.Ctx, "ban:"+uid).Err(); err != nil {
		return err
	}
	return s.Redis.Del(s.Ctx, "banlevel:"+uid).Err()
}

// EscalateBan bumps the user's ban level and returns the duration for it.
// The level sticks around for 30 days so repeat offenders climb the ladder.
func (s *Service) EscalateBan(uid string) (time.Duration, error) {
	level, err := s.Redis.Incr(s.Ctx, "banlevel:"+uid).Result()
	if err != nil {
		return 0, err
	}
	if err := s.Redis.Expire(s.Ctx, "banlevel:"+uid, 30*24*time.Hour).Err(); err != nil {
		return 0, err
	}
	return banDuration(level), nil
}

func banDuration(level int64) time.Duration {
	switch level {
	case 1:
		return config.BanLevel1Duration
	case 2:
		return config.BanLevel2Duration
	default:
		return config.BanLevel3Duration
	}
}
