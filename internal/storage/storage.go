// Package storage picks the journal backends named by the configuration.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeovahfialho/tradejournal/internal/config"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/storage/cache"
	"github.com/jeovahfialho/tradejournal/internal/storage/objects"
	"github.com/jeovahfialho/tradejournal/internal/storage/postgres"
	"github.com/jeovahfialho/tradejournal/internal/storage/sqlite"
	"github.com/jeovahfialho/tradejournal/pkg/logger"
	"go.uber.org/zap"
)

// Database is an open record store.
type Database struct {
	Repo        domain.TradeRepository
	Driver      string
	migrate     func(ctx context.Context) error
	healthCheck func(ctx context.Context) error
	close       func()
}

func (d *Database) Migrate(ctx context.Context) error {
	return d.migrate(ctx)
}

func (d *Database) HealthCheck(ctx context.Context) error {
	return d.healthCheck(ctx)
}

func (d *Database) Close() {
	d.close()
}

// SQLitePath reports whether url names a single file journal and returns
// its path. Accepted forms are sqlite://path, file:path and *.db.
func SQLitePath(url string) (string, bool) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return strings.TrimPrefix(url, "sqlite://"), true
	case strings.HasPrefix(url, "sqlite:"):
		return strings.TrimPrefix(url, "sqlite:"), true
	case strings.HasPrefix(url, "file:"):
		return url, true
	case strings.HasSuffix(url, ".db") && !strings.Contains(url, "://"):
		return url, true
	}
	return "", false
}

// OpenDatabase connects to PostgreSQL, or opens a SQLite file when the
// database url names one.
func OpenDatabase(cfg *config.Config) (*Database, error) {
	if path, ok := SQLitePath(cfg.DatabaseURL); ok {
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite journal", zap.String("path", path))
		return &Database{
			Repo:        sqlite.NewTradeRepository(db),
			Driver:      "sqlite",
			migrate:     func(context.Context) error { return nil },
			healthCheck: db.HealthCheck,
			close:       func() { _ = db.Close() },
		}, nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres")
	return &Database{
		Repo:        postgres.NewTradeRepository(db.Pool()),
		Driver:      "postgres",
		migrate:     db.Migrate,
		healthCheck: db.HealthCheck,
		close:       db.Close,
	}, nil
}

// Objects is the attachment bucket. Files is set only for the filesystem
// driver, whose links are served by this process.
type Objects struct {
	Store       domain.ObjectStore
	Files       *objects.FSStore
	HealthCheck func(ctx context.Context) error
}

func OpenObjects(ctx context.Context, cfg *config.Config) (*Objects, error) {
	switch cfg.StorageDriver {
	case "", "fs":
		fs, err := objects.NewFSStore(cfg.StorageDir, cfg.APIPublicURL, cfg.SigningKey())
		if err != nil {
			return nil, err
		}
		return &Objects{Store: fs, Files: fs, HealthCheck: fs.HealthCheck}, nil

	case "minio", "s3":
		m, err := objects.NewMinioStore(ctx, objects.MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UseSSL:    cfg.StorageUseSSL,
			Bucket:    cfg.StorageBucket,
		})
		if err != nil {
			return nil, err
		}
		return &Objects{Store: m, HealthCheck: m.HealthCheck}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// OpenCache prefers Redis and falls back to an in-process cache when no
// Redis url is set or the server cannot be reached.
func OpenCache(cfg *config.Config) cache.Store {
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err == nil {
			logger.Info("connected to redis")
			return redisCache
		}
		logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
	}
	return cache.NewMemoryCache(cfg.CacheTTL)
}
