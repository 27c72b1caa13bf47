package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/polywhale/whalescan/internal/secrets"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Real-Time Data Service (WebSocket feed)
	RTDSURL           string
	KeepAliveInterval time.Duration
	WatchdogInterval  time.Duration
	DataTimeout       time.Duration
	FeedBufferSize    int

	// Whale detection
	WhaleThresholdUSD float64

	// Data API (wallet enrichment)
	DataAPIBaseURL     string
	DataAPITradesRPS   float64
	DataAPIRankRPS     float64
	EnrichTimeout      time.Duration
	EnrichCacheTTL     time.Duration
	EnrichWorkers      int

	// Gamma API (market resolution)
	GammaAPIBaseURL    string
	GammaAPIMarketsRPS float64

	// Settlement
	SettlementInterval     time.Duration
	SettlementInitialDelay time.Duration

	// Retention cleanup
	RetentionDays   int
	CleanupInterval time.Duration

	// Periodic stats logging
	StatsLogInterval time.Duration

	// Alerts
	AlertMode          string // comma-separated: log, discord, smtp
	DiscordWebhookURLs []string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             []string

	// Metrics/Health
	HealthPort int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment:            getEnv("ENVIRONMENT", "production"),
		DatabaseDSN:            getEnv("DATABASE_DSN", "whalescan:whalescan@tcp(mysql:3306)/whalescan?parseTime=true"),
		DatabaseMaxConns:       getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime:    time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		RTDSURL:                getEnv("RTDS_URL", "wss://ws-live-data.polymarket.com"),
		KeepAliveInterval:      getEnvDuration("KEEPALIVE_INTERVAL_SEC", 5*time.Second),
		WatchdogInterval:       getEnvDuration("WATCHDOG_INTERVAL_SEC", 60*time.Second),
		DataTimeout:            getEnvDuration("DATA_TIMEOUT_SEC", 300*time.Second),
		FeedBufferSize:         getEnvInt("FEED_BUFFER_SIZE", 256),
		WhaleThresholdUSD:      getEnvFloat("WHALE_THRESHOLD_USD", 10000.0),
		DataAPIBaseURL:         getEnv("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		DataAPITradesRPS:       getEnvFloat("DATA_API_TRADES_RPS", 2.0),
		DataAPIRankRPS:         getEnvFloat("DATA_API_RANK_RPS", 1.0),
		EnrichTimeout:          getEnvDuration("ENRICH_TIMEOUT_SEC", 10*time.Second),
		EnrichCacheTTL:         time.Duration(getEnvInt("ENRICH_CACHE_TTL_HOURS", 24)) * time.Hour,
		EnrichWorkers:          getEnvInt("ENRICH_WORKERS", 5),
		GammaAPIBaseURL:        getEnv("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),
		GammaAPIMarketsRPS:     getEnvFloat("GAMMA_API_MARKETS_RPS", 2.0),
		SettlementInterval:     time.Duration(getEnvFloat("RESOLUTION_CHECK_INTERVAL_HOURS", 1.0) * float64(time.Hour)),
		SettlementInitialDelay: getEnvDuration("SETTLEMENT_INITIAL_DELAY_SEC", 60*time.Second),
		RetentionDays:          getEnvInt("RETENTION_DAYS", 30),
		CleanupInterval:        time.Duration(getEnvInt("CLEANUP_INTERVAL_HOURS", 24)) * time.Hour,
		StatsLogInterval:       getEnvDuration("STATS_LOG_INTERVAL_SEC", 300*time.Second),
		AlertMode:              getEnv("ALERT_MODE", "log"),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               getEnvInt("SMTP_PORT", 587),
		SMTPUser:               getEnv("SMTP_USER", ""),
		SMTPPassword:           secrets.GetOptional("SMTP_PASSWORD", ""),
		SMTPFrom:               getEnv("SMTP_FROM", "whalescan@example.com"),
		HealthPort:             getEnvInt("HEALTH_PORT", 8080),
	}

	// Comma-separated lists
	if urls := secrets.GetOptional("DISCORD_WEBHOOK_URLS", ""); urls != "" {
		cfg.DiscordWebhookURLs = parseCSV(urls)
	}
	if smtpTo := getEnv("SMTP_TO", ""); smtpTo != "" {
		cfg.SMTPTo = parseCSV(smtpTo)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.RTDSURL == "" {
		return fmt.Errorf("RTDS_URL is required")
	}
	if c.WhaleThresholdUSD <= 0 {
		return fmt.Errorf("WHALE_THRESHOLD_USD must be positive")
	}
	if c.DataTimeout <= c.KeepAliveInterval {
		return fmt.Errorf("DATA_TIMEOUT_SEC must exceed KEEPALIVE_INTERVAL_SEC")
	}

	hasDiscord := false
	hasSMTP := false
	for _, mode := range strings.Split(c.AlertMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && len(c.DiscordWebhookURLs) == 0 {
		return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
	}
	if hasSMTP && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when smtp is in ALERT_MODE")
	}
	if hasSMTP && len(c.SMTPTo) == 0 {
		return fmt.Errorf("SMTP_TO is required when smtp is in ALERT_MODE")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
