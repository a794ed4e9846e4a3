// Package config loads runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the process needs to run.
type Config struct {
	DBType string // "sqlite" or "postgres"
	DBDSN  string

	TelegramToken string

	SessionIdleTimeout time.Duration
	SessionMaxQueue    int

	MaxIntervalDays int

	ReminderStartHour int
	ReminderEndHour   int

	LogLevel string
}

// Load reads the environment (and a .env file when present) and returns
// the config with defaults applied.
func Load() Config {
	// A missing .env file is fine; real deployments set env directly.
	_ = godotenv.Load()

	return Config{
		DBType:             getEnv("DB_TYPE", "sqlite"),
		DBDSN:              getEnv("DB_DSN", "data/lexibot.db"),
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionMaxQueue:    getInt("SESSION_MAX_QUEUE", 0),
		MaxIntervalDays:    getInt("MAX_INTERVAL_DAYS", 365),
		ReminderStartHour:  getHour("REMINDER_START_HOUR", 8),
		ReminderEndHour:    getHour("REMINDER_END_HOUR", 22),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getHour(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			return h
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
