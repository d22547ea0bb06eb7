// Package database opens gorm connections to PostgreSQL/TimescaleDB
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGormLogger bridges gorm's logger onto zap
func NewGormLogger(zl *zap.Logger) logger.Interface {
	return logger.New(
		zap.NewStdLog(zl),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// CreateConnection opens a connection with the standard gorm configuration
// and checks that the server answers
func CreateConnection(ctx context.Context, connectionString string, zl *zap.Logger) (*gorm.DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("empty connection string")
	}
	if zl == nil {
		zl = zap.NewNop()
	}

	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: NewGormLogger(zl)})
	if err != nil {
		return nil, fmt.Errorf("unable to create a database connection: %w", err)
	}

	if err := Ping(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Ping checks the connection underneath db
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unable to get database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
