package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/image-posts/internal/config"
	"github.com/example/image-posts/internal/models"
)

type Database struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

func Connect(cfg *config.Config) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}
	return Open(dialector, cfg.DBLogLevel)
}

// Open wraps an already chosen dialector; tests pass an in-memory sqlite one.
func Open(dialector gorm.Dialector, logLevel string) (*Database, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger(logLevel)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	return &Database{Gorm: gormDB, SQL: sqlDB}, nil
}

func newLogger(level string) logger.Interface {
	return logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  parseLogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func (d *Database) AutoMigrate(modelsToMigrate ...interface{}) error {
	return d.Gorm.AutoMigrate(modelsToMigrate...)
}

// Migrate creates or updates every table the app owns.
func (d *Database) Migrate() error {
	return d.AutoMigrate(&models.Post{}, &models.ActivityLog{})
}

func (d *Database) Ping(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}

func (d *Database) Close() error {
	if d.SQL != nil {
		return d.SQL.Close()
	}
	return nil
}

func (d *Database) Transaction(ctx context.Context, fc func(tx *gorm.DB) error) error {
	return d.Gorm.WithContext(ctx).Transaction(fc)
}
