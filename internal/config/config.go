// Package config loads server configuration from the environment, with an
// optional .env file in development, before constructing a Server.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable setting the server needs.
type Config struct {
	Addr string

	// JWTSecret signs and verifies the short-lived session token minted on
	// connect and required at WebSocket upgrade time.
	JWTSecret []byte

	// AdminAPIKey gates the /api/admin/* surface.
	AdminAPIKey string

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	CleanupInterval   time.Duration
	UserInactiveAfter time.Duration
	RoomTTL           time.Duration
	RoomTTLWarnAt     time.Duration
}

// Load reads configuration from the process environment, first attempting
// to populate it from a .env file if one is present (a no-op, not an
// error, when it is absent).
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{
		Addr:              getString("FLAGSGAME_ADDR", ":8080"),
		JWTSecret:         []byte(getString("FLAGSGAME_JWT_SECRET", "dev-secret-change-me")),
		AdminAPIKey:       getString("FLAGSGAME_ADMIN_API_KEY", ""),
		HeartbeatInterval: getDuration("FLAGSGAME_HEARTBEAT_INTERVAL", 30*time.Second),
		HeartbeatTimeout:  getDuration("FLAGSGAME_HEARTBEAT_TIMEOUT", 10*time.Second),
		CleanupInterval:   getDuration("FLAGSGAME_CLEANUP_INTERVAL", time.Minute),
		UserInactiveAfter: getDuration("FLAGSGAME_USER_INACTIVE_AFTER", 5*time.Minute),
		RoomTTL:           getDuration("FLAGSGAME_ROOM_TTL", 2*time.Hour),
		RoomTTLWarnAt:     getDuration("FLAGSGAME_ROOM_TTL_WARN_AT", 10*time.Minute),
	}
	return cfg
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
