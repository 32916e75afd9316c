package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MaxActionLimit is the hard cap on action listings regardless of config.
const MaxActionLimit = 500

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Query        QueryConfig
	Audit        AuditConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// FixturePath seeds the in-memory store when no Postgres DSN is set.
	FixturePath string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Enabled turns the shared classifier cache on; otherwise a
	// process-local cache is used.
	Enabled bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// QueryConfig tunes the analytics engine.
type QueryConfig struct {
	ActionLimit int
	// MaxScan bounds how many tickets a scan-based query visits; 0 is unbounded.
	MaxScan          int
	StateFallback    string
	Dimension        string
	CacheTTLSeconds  int
	DefaultCaseLimit int
}

// AuditConfig controls the periodic consistency audit.
type AuditConfig struct {
	Enabled         bool
	IntervalSeconds int
	MaxTickets      int
}

// NotificationConfig holds stub notification endpoints for data-quality alerts.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "capta-tickets-analytics"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			FixturePath:           os.Getenv("FIXTURE_PATH"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Query: QueryConfig{
			ActionLimit:      getEnvAsInt("QUERY_ACTION_LIMIT", 50),
			MaxScan:          getEnvAsInt("QUERY_MAX_SCAN", 0),
			StateFallback:    getEnv("STATE_FALLBACK", "current"),
			Dimension:        getEnv("CLASSIFIER_DIMENSION", "tipo_solicitud"),
			CacheTTLSeconds:  getEnvAsInt("CLASSIFIER_CACHE_TTL_SECONDS", 3600),
			DefaultCaseLimit: getEnvAsInt("QUERY_CASE_LIMIT", 200),
		},
		Audit: AuditConfig{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", false),
			IntervalSeconds: getEnvAsInt("AUDIT_INTERVAL_SECONDS", 3600),
			MaxTickets:      getEnvAsInt("AUDIT_MAX_TICKETS", 0),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", ""),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.Query.ActionLimit <= 0 || cfg.Query.ActionLimit > MaxActionLimit {
		return nil, fmt.Errorf("invalid QUERY_ACTION_LIMIT %d: must be in 1..%d", cfg.Query.ActionLimit, MaxActionLimit)
	}
	if cfg.Query.MaxScan < 0 {
		return nil, fmt.Errorf("invalid QUERY_MAX_SCAN %d", cfg.Query.MaxScan)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the classifier cache entry lifetime.
func (q QueryConfig) CacheTTL() time.Duration {
	if q.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(q.CacheTTLSeconds) * time.Second
}

// Interval returns the audit period.
func (a AuditConfig) Interval() time.Duration {
	if a.IntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(a.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
