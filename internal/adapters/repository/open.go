package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/fairway/pkg/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// OpenConfig describes how to reach the database.
type OpenConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Open connects to the configured database.
func Open(cfg OpenConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         &gormLog{logger: logger.Get().Named("gorm")},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	switch {
	case driver == "sqlite":
		// A single connection keeps in-memory databases shared and serializes writers.
		sqlDB.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// gormLog routes gorm's logging through the service logger.
type gormLog struct {
	logger logger.Logger
}

func (g *gormLog) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g *gormLog) Info(ctx context.Context, msg string, args ...any) {
	g.logger.Debug(ctx, fmt.Sprintf(msg, args...))
}

func (g *gormLog) Warn(ctx context.Context, msg string, args ...any) {
	g.logger.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (g *gormLog) Error(ctx context.Context, msg string, args ...any) {
	g.logger.Error(ctx, fmt.Sprintf(msg, args...))
}

func (g *gormLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.logger.Error(ctx, "query failed",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed),
			logger.Error(err),
		)
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		g.logger.Warn(ctx, "slow query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed),
		)
	}
}
