// Package config loads and validates RCRT's server configuration: database
// connection, event fanout, embedder, JWT, hygiene/edge worker tuning, and
// secret-store KEK material.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the umbrella configuration object returned by Load and passed
// by capability to every service — there is no process-wide singleton.
type Config struct {
	Database DatabaseConfig
	Events   EventsConfig
	Embedder EmbedderConfig
	Auth     AuthConfig
	Hygiene  HygieneConfig
	Edges    EdgeConfig
	Secrets  SecretsConfig
	HTTP     HTTPConfig
	Search   SearchConfig
}

// DatabaseConfig holds the Postgres connection and pool settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the libpq-style connection string consumed by pgx/stdlib.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventsConfig tunes the outbox drainer, NOTIFY channel naming, SSE
// heartbeat, and per-subscriber backlog depth.
type EventsConfig struct {
	ChannelPrefix       string
	RetentionHorizon    time.Duration
	HeartbeatInterval   time.Duration
	SubscriberQueueSize int
	WebhookMaxRetries   int
	WebhookBaseDelay    time.Duration
	WebhookMaxDelay     time.Duration
}

// EmbedderConfig points at the pluggable external embedder.
type EmbedderConfig struct {
	Endpoint string
	Timeout  time.Duration
	Dim      int
}

// AuthConfig holds JWT signing material and defaults.
type AuthConfig struct {
	SigningKey      string
	Issuer          string
	TokenTTL        time.Duration
	DefaultDeadline time.Duration
	MaxDeadline     time.Duration
}

// HygieneConfig tunes the TTL hygiene worker.
type HygieneConfig struct {
	ScanInterval time.Duration
	BatchSize    int
	// Action is the disposition applied to expired breadcrumbs:
	// "tombstone" (soft delete, default), "hard_delete", or "archive"
	// (history-only: a final history snapshot of the current version is
	// written, then the breadcrumbs row is removed).
	Action string
}

// EdgeConfig tunes the edge builder worker pool.
type EdgeConfig struct {
	WorkerCount     int
	TopMPerType     int
	TagOverlapMinK  int
	SemanticTopK    int
	SemanticThresh  float64
}

// SecretsConfig holds the process KEK. The KEK itself is only ever
// sourced from the environment, never from a config file on disk.
type SecretsConfig struct {
	KEKBase64 string
}

// HTTPConfig tunes the REST/SSE gateway.
type HTTPConfig struct {
	Port              string
	MaxPayloadBytes   int64
	IdempotencyWindow time.Duration
}

// SearchConfig tunes the hybrid search planner's default scoring weights
// and candidate-set overgeneration factor.
type SearchConfig struct {
	Alpha             float64
	Beta              float64
	CandidateMultiple int
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Load builds a Config from environment variables (after the caller has
// loaded any .env file via godotenv), applying the defaults written
// inline below where unset, then validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "rcrt"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "rcrt"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Events: EventsConfig{
			ChannelPrefix:       getEnv("EVENTS_CHANNEL_PREFIX", "rcrt"),
			RetentionHorizon:    getEnvDuration("EVENTS_RETENTION_HORIZON", 72*time.Hour),
			HeartbeatInterval:   getEnvDuration("EVENTS_HEARTBEAT_INTERVAL", 15*time.Second),
			SubscriberQueueSize: getEnvInt("EVENTS_SUBSCRIBER_QUEUE_SIZE", 256),
			WebhookMaxRetries:   getEnvInt("EVENTS_WEBHOOK_MAX_RETRIES", 8),
			WebhookBaseDelay:    getEnvDuration("EVENTS_WEBHOOK_BASE_DELAY", 500*time.Millisecond),
			WebhookMaxDelay:     getEnvDuration("EVENTS_WEBHOOK_MAX_DELAY", 5*time.Minute),
		},
		Embedder: EmbedderConfig{
			Endpoint: getEnv("EMBEDDER_ENDPOINT", ""),
			Timeout:  getEnvDuration("EMBEDDER_TIMEOUT", 10*time.Second),
			Dim:      getEnvInt("EMBEDDER_DIM", 1536),
		},
		Auth: AuthConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", ""),
			Issuer:          getEnv("JWT_ISSUER", "rcrt"),
			TokenTTL:        getEnvDuration("JWT_TOKEN_TTL", 24*time.Hour),
			DefaultDeadline: getEnvDuration("REQUEST_DEFAULT_DEADLINE", 30*time.Second),
			MaxDeadline:     getEnvDuration("REQUEST_MAX_DEADLINE", 5*time.Minute),
		},
		Hygiene: HygieneConfig{
			ScanInterval: getEnvDuration("HYGIENE_SCAN_INTERVAL", time.Minute),
			BatchSize:    getEnvInt("HYGIENE_BATCH_SIZE", 500),
			Action:       getEnv("HYGIENE_ACTION", "tombstone"),
		},
		Edges: EdgeConfig{
			WorkerCount:    getEnvInt("EDGE_WORKER_COUNT", 4),
			TopMPerType:    getEnvInt("EDGE_TOP_M_PER_TYPE", 20),
			TagOverlapMinK: getEnvInt("EDGE_TAG_OVERLAP_MIN_K", 2),
			SemanticTopK:   getEnvInt("EDGE_SEMANTIC_TOP_K", 10),
			SemanticThresh: 0.75,
		},
		Secrets: SecretsConfig{
			KEKBase64: getEnv("SECRETS_KEK", ""),
		},
		HTTP: HTTPConfig{
			Port:              getEnv("HTTP_PORT", "8080"),
			MaxPayloadBytes:   int64(getEnvInt("HTTP_MAX_PAYLOAD_BYTES", 5*1024*1024)),
			IdempotencyWindow: getEnvDuration("IDEMPOTENCY_WINDOW", 24*time.Hour),
		},
		Search: SearchConfig{
			Alpha:             getEnvFloat("SEARCH_ALPHA", 0.6),
			Beta:              getEnvFloat("SEARCH_BETA", 0.4),
			CandidateMultiple: getEnvInt("SEARCH_CANDIDATE_MULTIPLE", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
