package config

import (
	"os"
	"strconv"
	"time"
)

// DefaultProgramID is the ledger program observed when no override is given.
const DefaultProgramID = "47TNsKC1iJvLTKYRMbfYjrod4a56YE1f4qv73hZkdWUZ"

// Config captures the whole environment surface so main stays lean.
type Config struct {
	Addr string

	ProgramID   string
	LedgerWSURL string
	SchemaPath  string
	RunListener bool

	// DefaultNamespace is used by the blacklist API when a request names none.
	DefaultNamespace string

	WebhookURL        string
	WebhookMaxRetries int
	WebhookTimeout    time.Duration
	WebhookQueueSize  int
	WebhookWorkers    int

	ScreeningURL        string
	ScreeningTimeout    time.Duration
	ScreeningFailClosed bool

	DatabaseURL  string
	RedisURL     string
	AuditLogFile string

	APIJWTSecret string
}

// FromEnv builds a Config from environment variables. Absent optional endpoints
// disable their feature rather than erroring.
func FromEnv() Config {
	return Config{
		Addr: envOr("ADDR", ":8080"),

		ProgramID:   envOr("LEDGER_PROGRAM_ID", DefaultProgramID),
		LedgerWSURL: os.Getenv("LEDGER_WS_URL"),
		SchemaPath:  os.Getenv("LEDGER_SCHEMA_PATH"),
		RunListener: envOr("RUN_EVENT_LISTENER", "true") != "false",

		DefaultNamespace: os.Getenv("NAMESPACE"),

		WebhookURL:        os.Getenv("WEBHOOK_URL"),
		WebhookMaxRetries: envInt("WEBHOOK_MAX_RETRIES", 5),
		WebhookTimeout:    time.Duration(envInt("WEBHOOK_TIMEOUT_MS", 10000)) * time.Millisecond,
		WebhookQueueSize:  envInt("WEBHOOK_QUEUE_SIZE", 256),
		WebhookWorkers:    envInt("WEBHOOK_WORKERS", 4),

		ScreeningURL:        os.Getenv("SCREENING_URL"),
		ScreeningTimeout:    time.Duration(envInt("SCREENING_TIMEOUT_MS", 5000)) * time.Millisecond,
		ScreeningFailClosed: os.Getenv("SCREENING_FAIL_CLOSED") == "true",

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		AuditLogFile: os.Getenv("AUDIT_LOG_FILE"),

		APIJWTSecret: os.Getenv("API_JWT_SECRET"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
