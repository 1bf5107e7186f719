package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"honbap/backend/internal/config"
	"honbap/backend/internal/docstore/redistore"
	"honbap/backend/internal/pairing"
	"honbap/backend/internal/storage"
)

// Small ops CLI against the production store: inspect the ledger, apply and
// lift bans.
func main() {
	_ = godotenv.Load()

	rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr()})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("failed to connect Redis: %v", err)
	}

	storageSvc := storage.NewStorageService(nil, rdb) // no Postgres needed here
	engine := pairing.NewService(redistore.New(rdb))

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <ban|unban|rep> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ban":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin ban <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		userID := os.Args[2]
		var duration time.Duration
		if len(os.Args) > 3 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid duration. Please provide an integer.")
				os.Exit(1)
			}
			duration = time.Duration(hours) * time.Hour
		}
		if err := storageSvc.BanUser(userID, duration); err != nil {
			log.Fatalf("Error banning user: %v", err)
		}
		fmt.Printf("User %s has been banned.\n", userID)
	case "unban":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unban <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		if err := storageSvc.UnbanUser(userID); err != nil {
			log.Fatalf("Error unbanning user: %v", err)
		}
		fmt.Printf("User %s has been unbanned.\n", userID)
	case "rep":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin rep <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		rec, err := engine.GetReputation(ctx, userID)
		if err != nil {
			log.Fatalf("Error reading reputation: %v", err)
		}
		banned, _ := storageSvc.IsUserBanned(userID)
		fmt.Printf("user=%s penaltyScore=%d honbapTemp=%.1f banned=%v\n",
			userID, rec.PenaltyScore, rec.HonbapTemp, banned)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}
