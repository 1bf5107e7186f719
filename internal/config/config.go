package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// Matching
	HeartbeatPeriod = 10 * time.Second
	MatchTTL        = 20 * time.Second // candidates must have been active within this window
	OnlineWindow    = 10 * time.Second // stricter window for "online only" preferences
	QueueScanLimit  = 50               // single status=="waiting" query cap, no extra index needed

	// Rooms
	InviteWaitTimeout = 60 * time.Second
	StartWaitTimeout  = 60 * time.Second
	MessageFeedLimit  = 200
	BotUserID         = "honbap-bot"

	// Store
	TxMaxAttempts = 5

	// Reputation
	InitialTemp     = 36.5
	AbandonTempLoss = 0.5
	MinTemp         = 0.0

	// Ban policy (consumers of the penalty ledger)
	BanThresholdScore = -10
	BanThresholdTemp  = 30.0
	BanLevel1Duration = 30 * time.Minute
	BanLevel2Duration = 6 * time.Hour
	BanLevel3Duration = 24 * time.Hour
)

// PenaltyWeights maps a penalty kind to the amount subtracted from penaltyScore.
var PenaltyWeights = map[string]int{
	"decline":      1,
	"startDecline": 1,
}

// IsLocal reports whether the process runs against the in-memory store.
// Heartbeats are disabled in local mode to avoid unbounded writes.
func IsLocal() bool {
	return os.Getenv("APP_ENV") == "local"
}

func RedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func PostgresDSN() string {
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
}

func JWTSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("honbap-dev-secret")
}
