package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/seb7887/gofw/sietch"
)

type widgetStore = sietch.StorageAdapter[widgetRow, string]

// openStorage opens the configured backend. The returned func releases it.
func openStorage(ctx context.Context, cfg StorageConfig, logger *slog.Logger) (widgetStore, func() error, error) {
	queryLogger := sietch.NewSlogLogger(logger)
	noop := func() error { return nil }

	switch cfg.Backend {
	case "memory":
		store, err := sietch.NewInMemoryConnector[widgetRow, string]()
		return store, noop, err

	case "json":
		store, err := sietch.NewJSONFileConnector[widgetRow, string](sietch.JSONFileOptions{
			ResourcesPath: cfg.ResourcesPath,
			FileName:      "Widget.json",
			Logger:        queryLogger,
		})
		return store, noop, err

	case "cockroach":
		pool, err := sietch.NewCockroachDBConnPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to cockroach: %w", err)
		}
		store, err := sietch.NewCockroachDBConnector[widgetRow, string](pool, "widgets")
		if err == nil {
			store.SetLogger(queryLogger)
			err = store.EnsureTable(ctx)
		}
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() error { pool.Close(); return nil }, nil

	case "gorm-sqlite", "gorm-postgres":
		var dialector gorm.Dialector
		if cfg.Backend == "gorm-sqlite" {
			dialector = sqlite.Open(cfg.DSN)
		} else {
			dialector = postgres.Open(cfg.DSN)
		}
		db, err := sietch.OpenGorm(dialector)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", cfg.Backend, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := sietch.NewGormConnector[widgetRow, string](db)
		if err == nil {
			store.SetLogger(queryLogger)
			err = store.EnsureTable(ctx)
		}
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return store, sqlDB.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		store, err := sietch.NewRedisConnector[widgetRow, string](client, sietch.RedisOptions{
			Prefix: "widgets",
			Logger: queryLogger,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil

	case "badger":
		db, err := sietch.OpenBadger(cfg.BadgerPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening badger: %w", err)
		}
		store, err := sietch.NewBadgerConnector[widgetRow, string](db, "widgets")
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store.SetLogger(queryLogger)
		return store, db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
