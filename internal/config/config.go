package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	RedisURL   string
	// QuestionSourceURL is the external endpoint that supplies the
	// question set fetched at session start.
	QuestionSourceURL string
	FetchTimeout      time.Duration
	// QuizDuration is the countdown budget for a session.
	QuizDuration time.Duration
	// TimerWarning is the remaining-time threshold at or below which the
	// rendered timer carries the urgency flag.
	TimerWarning time.Duration
	// SessionRetention is how long a submitted session stays in the
	// registry before the janitor evicts it.
	SessionRetention time.Duration
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QuestionSourceURL: getEnv("QUESTION_SOURCE_URL", "http://localhost:8000/api/questions"),
		FetchTimeout:      time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		QuizDuration:      time.Duration(getEnvInt("QUIZ_DURATION_SECONDS", 1800)) * time.Second,
		TimerWarning:      time.Duration(getEnvInt("TIMER_WARNING_SECONDS", 300)) * time.Second,
		SessionRetention:  time.Duration(getEnvInt("SESSION_RETENTION_MINUTES", 60)) * time.Minute,
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
