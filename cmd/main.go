package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"honbap/backend/internal/api/handler"
	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore"
	"honbap/backend/internal/docstore/memstore"
	"honbap/backend/internal/docstore/redistore"
	"honbap/backend/internal/localization"
	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
	"honbap/backend/internal/policy"
	"honbap/backend/internal/storage"
)

func setupDependencies() (docstore.Store, *storage.Service) {
	if config.IsLocal() {
		log.Println("Local mode: in-memory store, no archive, heartbeats off.")
		return memstore.New(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: "",
		DB:       0,
	})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	var archive *storage.Service
	if dsn := config.PostgresDSN(); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect PostgreSQL: %v", err)
		}
		if err := db.AutoMigrate(&models.ArchivedRoom{}, &models.ChatArchive{}); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		archive = storage.NewStorageService(db, rdb)
	} else {
		log.Println("Warning: DB_HOST not set, room archival disabled")
	}

	log.Println("Store and archive connections established.")
	return redistore.New(rdb), archive
}

func main() {
	log.Println("Starting Honbap Pairing Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	store, archive := setupDependencies()

	engine := pairing.NewService(store)
	engine.HeartbeatDisabled = config.IsLocal()

	var pol *policy.Service
	if archive != nil {
		pol = policy.NewService(engine, archive)
	}

	loc := localization.NewLocalizer()

	r := gin.Default()
	var archiveIface storage.Storage
	if archive != nil {
		archiveIface = archive
	}
	h := handler.NewHandler(engine, pol, archiveIface, loc)

	r.GET("/anonid", h.GetAnonID)

	authed := r.Group("/", h.AuthRequired)
	authed.POST("/queue", h.EnterQueue)
	authed.DELETE("/queue", h.CancelQueue)
	authed.POST("/queue/leaving", h.MarkLeaving)
	authed.GET("/queue/:entryId", h.QueueStatus)
	authed.POST("/queue/:entryId/match", h.TryMatch)

	authed.GET("/rooms/:roomId", h.GetRoom)
	authed.POST("/rooms/:roomId/accept", h.AcceptInvite)
	authed.POST("/rooms/:roomId/decline", h.DeclineInvite)
	authed.POST("/rooms/:roomId/vote", h.VoteStart)
	authed.POST("/rooms/:roomId/leave", h.LeaveRoom)
	authed.GET("/rooms/:roomId/wait", h.AwaitPhase)
	authed.POST("/rooms/bot", h.PairWithBot)

	authed.GET("/rooms/:roomId/messages", h.ListMessages)
	authed.POST("/rooms/:roomId/messages", h.SendMessage)
	authed.GET("/ws/rooms/:roomId", h.ServeRoomFeed)

	server := &http.Server{
		Addr:           ":8080",
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   90 * time.Second, // long-polled phase waits need headroom
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
