package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"donationhub/internal/domain"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	LeaderboardStore = "store"
	LeaderboardRedis = "redis"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StorageDriver      string
	DatabaseURL        string
	DBMaxConns         int
	SQLitePath         string
	RedisURL           string
	LeaderboardDriver  string
	LedgerRetention    int
	SnowflakeNode      int64
	WebhookTokens      map[domain.Platform]string
	DiscordWebhookURL  string
	DiscordTimeout     time.Duration
	NotifyQueueSize    int
	RabbitMQURL        string
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	GeoIPDBPath        string
	DedupeTTL          time.Duration
	StatsSchedule      string
	StatsPeriod        string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	MetricsEnabled     bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		SQLitePath:        getEnv("SQLITE_PATH", "./data/donations.db"),
		RedisURL:          os.Getenv("REDIS_URL"),
		LeaderboardDriver: strings.ToLower(getEnv("LEADERBOARD_DRIVER", LeaderboardStore)),
		LedgerRetention:   getEnvInt("LEDGER_RETENTION", domain.DefaultLedgerRetention),
		SnowflakeNode:     int64(getEnvInt("SNOWFLAKE_NODE", 1)),
		WebhookTokens: map[domain.Platform]string{
			domain.PlatformBagiBagi: strings.TrimSpace(getEnv("BAGIBAGI_WEBHOOK_TOKEN", os.Getenv("WEBHOOK_TOKEN"))),
			domain.PlatformSaweria:  strings.TrimSpace(os.Getenv("SAWERIA_WEBHOOK_TOKEN")),
		},
		DiscordWebhookURL:  strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
		DiscordTimeout:     time.Second * time.Duration(getEnvInt("DISCORD_TIMEOUT_SECONDS", 5)),
		NotifyQueueSize:    getEnvInt("NOTIFY_QUEUE_SIZE", 256),
		RabbitMQURL:        strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		AdminJWTSecret:     os.Getenv("ADMIN_JWT_SECRET"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DedupeTTL:          time.Minute * time.Duration(getEnvInt("DEDUPE_TTL_MINUTES", 60)),
		StatsSchedule:      getEnv("STATS_REPORT_SCHEDULE", "0 9 * * *"),
		StatsPeriod:        getEnv("STATS_REPORT_PERIOD", "24h"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
	}

	switch cfg.StorageDriver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.LeaderboardDriver {
	case LeaderboardStore:
	case LeaderboardRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when LEADERBOARD_DRIVER=redis")
		}
	default:
		return nil, fmt.Errorf("unsupported LEADERBOARD_DRIVER %q", cfg.LeaderboardDriver)
	}

	if cfg.SnowflakeNode < 0 || cfg.SnowflakeNode > 1023 {
		return nil, fmt.Errorf("SNOWFLAKE_NODE must be between 0 and 1023")
	}
	if cfg.DBMaxConns <= 0 {
		cfg.DBMaxConns = 10
	}
	if cfg.LedgerRetention <= 0 {
		cfg.LedgerRetention = domain.DefaultLedgerRetention
	}

	return cfg, nil
}

// WebhookToken returns the shared secret configured for platform, if any.
func (c *Config) WebhookToken(p domain.Platform) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.WebhookTokens[p])
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
