// Package app holds the wiring shared by the commands: the logger and the
// configured store with its run lock.
package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"topicpush/internal/config"
	"topicpush/internal/runlock"
	"topicpush/internal/storage"
)

// NewLogger returns a text logger on stderr at the given level name.
// Unknown names mean info.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps debug, warn and error to their slog levels; anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore returns the configured store and the lock that serializes runs.
// The redis lock lives next to the data; a sqlite file is owned by one
// process, so its runs need no lock.
func OpenStore(cfg *config.Config, log *slog.Logger) (storage.Storage, runlock.Locker, error) {
	if cfg.StoreDriver == config.DriverRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		lock := runlock.NewRedis(client, runlock.DefaultKey, cfg.LockTTL)
		log.Debug("redis store opened", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return storage.NewRedis(client, cfg.Collections), lock, nil
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, err
		}
	}
	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("sqlite store opened", "path", cfg.DatabasePath)
	return store, runlock.Noop{}, nil
}
