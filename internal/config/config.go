// Package config resolves application configuration from a .env file,
// environment variables and positional arguments.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"topicpush/internal/email"
	"topicpush/internal/storage"
	"topicpush/internal/topics"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	// SES transport. Either may be empty; sends then become no-ops.
	Region string
	Sender string

	StoreDriver  string
	DatabasePath string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	Collections  storage.Collections

	Topics   topics.Catalog
	LogLevel string

	RunInterval  time.Duration
	LockTTL      time.Duration
	SendInterval time.Duration

	TelegramBotToken string
	ReportChatID     int64

	Message email.MessageConfig
}

// Load resolves the configuration once. Values from a .env file in the
// working directory never override the real environment; args, when given,
// are [region [sender]] and override both.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if len(args) > 2 {
		return nil, fmt.Errorf("expected at most 2 arguments (region, sender), got %d", len(args))
	}

	cols := storage.DefaultCollections()
	msg := email.DefaultMessage()
	cfg := &Config{
		Region:       os.Getenv("SES_REGION"),
		Sender:       os.Getenv("SES_SENDER"),
		StoreDriver:  envOrDefault("STORE_DRIVER", DriverSQLite),
		DatabasePath: envOrDefault("DATABASE_PATH", "./data/notifier.db"),
		RedisAddr:    envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		Collections: storage.Collections{
			Items:       envOrDefault("ITEMS_COLLECTION", cols.Items),
			Users:       envOrDefault("USERS_COLLECTION", cols.Users),
			PushHistory: envOrDefault("PUSH_HISTORY_COLLECTION", cols.PushHistory),
		},
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		Message: email.MessageConfig{
			Subject:        envOrDefault("EMAIL_SUBJECT", msg.Subject),
			BrandImageURL:  envOrDefault("BRAND_IMAGE_URL", msg.BrandImageURL),
			UnsubscribeURL: envOrDefault("UNSUBSCRIBE_URL", msg.UnsubscribeURL),
		},
	}

	if len(args) > 0 && args[0] != "" {
		cfg.Region = args[0]
	}
	if len(args) > 1 && args[1] != "" {
		cfg.Sender = args[1]
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverRedis:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q, use %s or %s", cfg.StoreDriver, DriverSQLite, DriverRedis)
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ReportChatID, err = int64Env("REPORT_CHAT_ID", 0); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = durationEnv("RUN_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = durationEnv("LOCK_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SendInterval, err = durationEnv("SEND_INTERVAL", 100*time.Millisecond); err != nil {
		return nil, err
	}

	cfg.Topics = topics.Default()
	if path := os.Getenv("TOPICS_FILE"); path != "" {
		if cfg.Topics, err = topics.LoadFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ReportEnabled reports whether run summaries go to Telegram.
func (c *Config) ReportEnabled() bool {
	return c.TelegramBotToken != "" && c.ReportChatID != 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func int64Env(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}
