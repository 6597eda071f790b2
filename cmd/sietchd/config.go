package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/seb7887/gofw/cfgmng"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Keys    KeysConfig    `mapstructure:"keys"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Events  EventsConfig  `mapstructure:"events"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	// Backend is one of memory, json, cockroach, gorm-sqlite, gorm-postgres,
	// redis, badger
	Backend       string `mapstructure:"backend"`
	DSN           string `mapstructure:"dsn"`
	ResourcesPath string `mapstructure:"resources_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	BadgerPath    string `mapstructure:"badger_path"`
}

type KeysConfig struct {
	// Generator is uuid, uuidv7 or ulid
	Generator string `mapstructure:"generator"`
}

type LoaderConfig struct {
	Workers int `mapstructure:"workers"`
	Queue   int `mapstructure:"queue"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
	Topic   string `mapstructure:"topic"`
}

// Every key needs a default so that its environment variable is seen.
var defaults = map[string]any{
	"server.addr":            ":8080",
	"log.level":              "info",
	"log.format":             "text",
	"storage.backend":        "memory",
	"storage.dsn":            "",
	"storage.resources_path": "Resources",
	"storage.redis_addr":     "localhost:6379",
	"storage.badger_path":    "",
	"keys.generator":         "uuid",
	"loader.workers":         4,
	"loader.queue":           16,
	"events.enabled":         false,
	"events.nats_url":        "",
	"events.topic":           "sietch.widgets",
}

// loadConfig reads <dir>/sietchd.yaml when present. SIETCH_* environment
// variables override it, e.g. SIETCH_STORAGE_BACKEND.
func loadConfig(dir string) (*Config, error) {
	cfg, err := cfgmng.LoadConfig[Config](dir, "sietchd",
		cfgmng.WithEnvPrefix("SIETCH"),
		cfgmng.WithDefaults(defaults),
		cfgmng.Optional(),
	)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
}
