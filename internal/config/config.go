// Package config loads application configuration from environment
// variables (with .env support) and validates it at startup.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/subflowhq/rebill/internal/timezone"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	LogFormat   string

	ServerAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	GatewayBaseURL   string
	GatewayAPIKey    string
	GatewaySecretKey string
	GatewayTimeout   time.Duration

	ScanInterval      time.Duration
	LookbackWindow    time.Duration
	BatchSize         int
	BackfillBatchSize int
	DebounceWindow    time.Duration

	TelegramBotToken string
	TelegramChatID   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "rebill"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),

		ServerAddr: getenv("SERVER_ADDR", ":3011"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rebill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		GatewayBaseURL:   getenv("GATEWAY_BASE_URL", "https://api.iyzipay.com"),
		GatewayAPIKey:    strings.TrimSpace(getenv("GATEWAY_API_KEY", "")),
		GatewaySecretKey: strings.TrimSpace(getenv("GATEWAY_SECRET_KEY", "")),
		GatewayTimeout:   getenvDuration("GATEWAY_TIMEOUT", 60*time.Second),

		ScanInterval:      getenvDuration("SCAN_INTERVAL", 5*time.Minute),
		LookbackWindow:    getenvDuration("LOOKBACK_WINDOW", 15*time.Minute),
		BatchSize:         getenvInt("SCAN_BATCH_SIZE", 200),
		BackfillBatchSize: getenvInt("BACKFILL_BATCH_SIZE", 500),
		DebounceWindow:    getenvDuration("NOTIFY_DEBOUNCE_WINDOW", 5*time.Second),

		TelegramBotToken: strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
		TelegramChatID:   strings.TrimSpace(getenv("TELEGRAM_CHAT_ID", "")),
	}
}

// Validate fails fast on configuration errors that would otherwise
// surface deep inside a per-record attempt.
func (c Config) Validate() error {
	if c.GatewayAPIKey == "" || c.GatewaySecretKey == "" {
		return errors.New("GATEWAY_API_KEY and GATEWAY_SECRET_KEY are required")
	}
	if c.ScanInterval <= 0 || c.LookbackWindow <= 0 || c.BatchSize <= 0 {
		return errors.New("scheduler intervals and batch size must be positive")
	}
	return timezone.ValidateTable()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
