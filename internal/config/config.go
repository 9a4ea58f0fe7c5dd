package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	APIBaseURL string
	// APIToken is the bearer token attached to every request. Token
	// acquisition and refresh belong to the caller, not this SDK.
	APIToken       string
	HTTPTimeout    time.Duration
	RetryMax       int
	RetryBackoff   time.Duration
	JournalPath    string
	JournalBackend string // "sqlite" or "redis"
	RedisURL       string
	LogLevel       string
	LogFormat      string

	// Stub server settings (cmd/stub-server only).
	StubPort   string
	StubSecret string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:     getEnv("EXAM_API_BASE_URL", "http://localhost:8080/api/v1"),
		APIToken:       getEnv("EXAM_API_TOKEN", ""),
		HTTPTimeout:    time.Duration(getEnvInt("EXAM_HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		RetryMax:       getEnvInt("EXAM_RETRY_MAX", 3),
		RetryBackoff:   time.Duration(getEnvInt("EXAM_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		JournalPath:    getEnv("EXAM_JOURNAL_PATH", "./exam-journal.db"),
		JournalBackend: getEnv("EXAM_JOURNAL_BACKEND", "sqlite"),
		RedisURL:       getEnv("EXAM_REDIS_URL", "redis://localhost:6379/0"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		StubPort:       getEnv("STUB_PORT", "8080"),
		StubSecret:     getEnv("STUB_JWT_SECRET", "stub-dev-secret"),
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
