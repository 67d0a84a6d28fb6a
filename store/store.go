// Package store opens the connection handles each stage uses. Every opener returns the handle
// together with a release function; the caller owns both for the lifetime of one stage.
package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/studieren/dualstore/config"
)

// Release closes a handle opened by this package.
type Release func(ctx context.Context) error

func dialector(cfg config.Relational) (gorm.Dialector, error) {
	switch cfg.Dialect {
	case config.DialectSQLite:
		return sqlite.Open(cfg.DSN), nil
	case config.DialectMySQL:
		return mysql.Open(cfg.DSN), nil
	case config.DialectPostgres:
		// lib/pq 作为底层驱动
		return postgres.New(postgres.Config{DriverName: "postgres", DSN: cfg.DSN}), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDialect, cfg.Dialect)
	}
}

// OpenRelational opens the relational store with duplicate-key translation enabled.
func OpenRelational(cfg config.Relational) (*gorm.DB, Release, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, nil, err
	}

	level := logger.Warn
	if cfg.Echo {
		level = logger.Info
	}
	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	// 连接最长复用一小时
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, func(context.Context) error { return sqlDB.Close() }, nil
}

// OpenMongo connects and pings, returning the configured database.
func OpenMongo(ctx context.Context, cfg config.Mongo) (*mongo.Database, Release, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(cfg.Database), client.Disconnect, nil
}

// OpenRedis returns nil without error when no address is configured.
func OpenRedis(ctx context.Context, cfg config.Redis) (*redis.Client, Release, error) {
	if cfg.Addr == "" {
		return nil, func(context.Context) error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, func(context.Context) error { return client.Close() }, nil
}
