package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr         string
	RedisURL     string
	DatabaseURL  string
	PollInterval time.Duration
	SessionTTL   time.Duration
	CORSOrigin   string
}

func Load() Config {
	return Config{
		Addr: getenv("SYNCD_ADDR", ":8790"),
		// Redis - empty means the in-memory backend (single node only)
		RedisURL: getenv("REDIS_URL", ""),
		// Postgres - empty disables the operation archive
		DatabaseURL:  getenv("DATABASE_URL", ""),
		PollInterval: time.Duration(getenvInt("COLLAB_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		SessionTTL:   time.Duration(getenvInt("COLLAB_SESSION_TTL_SECONDS", 30)) * time.Second,
		CORSOrigin:   getenv("SYNCD_CORS_ORIGIN", "*"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
