// Package timescaledb archives building results in TimescaleDB through gorm
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/database"
	"github.com/chrissnell/daylight/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EngineName labels this backend in logs and metrics
const EngineName = "timescaledb"

// Storage holds the configuration for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
	recorder        storage.WriteRecorder
	logger          *zap.SugaredLogger
}

// We declare the Tabler interface for purposes of customizing the table name in the DB
type Tabler interface {
	TableName() string
}

var (
	_ Tabler = RunRecord{}
	_ Tabler = WindowRecord{}
)

// New connects to TimescaleDB and prepares the schema. recorder may be nil.
func New(ctx context.Context, connectionString string, recorder storage.WriteRecorder, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Info("connecting to TimescaleDB...")
	db, err := database.CreateConnection(ctx, connectionString, logger.Desugar())
	if err != nil {
		return nil, err
	}

	t := &Storage{TimescaleDBConn: db, recorder: recorder, logger: logger}
	if err := t.createSchema(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Storage) createSchema(ctx context.Context) error {
	db := t.TimescaleDBConn.WithContext(ctx)

	t.logger.Info("creating TimescaleDB extension...")
	if err := db.Exec(createExtensionSQL).Error; err != nil {
		return fmt.Errorf("could not create TimescaleDB extension: %w", err)
	}

	t.logger.Info("migrating result tables...")
	if err := db.AutoMigrate(&RunRecord{}, &WindowRecord{}); err != nil {
		return fmt.Errorf("could not migrate result tables: %w", err)
	}

	t.logger.Info("creating hypertable...")
	if err := db.Exec(createHypertableSQL).Error; err != nil {
		return fmt.Errorf("could not create hypertable: %w", err)
	}

	t.logger.Info("creating daily compliance view...")
	if err := db.Exec(createDailyViewSQL).Error; err != nil {
		return fmt.Errorf("could not create daily view: %w", err)
	}
	if err := db.Exec(addDailyPolicySQL).Error; err != nil {
		// The aggregate stays queryable without its refresh policy
		t.logger.Warnw("could not add daily aggregation policy", "error", err)
	}
	return nil
}

// StartStorageEngine creates a goroutine loop to receive results and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- *compliance.BuildingResult {
	t.logger.Info("starting TimescaleDB storage engine...")
	resultChan := make(chan *compliance.BuildingResult, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, t.StoreResult, EngineName, t.recorder, t.logger)
	return resultChan
}

// StoreResult writes the run row and its window rows in one transaction
func (t *Storage) StoreResult(ctx context.Context, r *compliance.BuildingResult) error {
	run, windows := records(r)
	return t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("could not store run %s: %w", run.RunID, err)
		}
		if len(windows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(windows, 500).Error; err != nil {
			return fmt.Errorf("could not store window results of run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// CheckHealth pings the database
func (t *Storage) CheckHealth(ctx context.Context) *storage.Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := database.Ping(ctx, t.TimescaleDBConn); err != nil {
		return storage.CreateHealth(storage.StatusUnhealthy, "ping failed", err)
	}
	return storage.CreateHealth(storage.StatusHealthy, "connected", nil)
}

// Close closes the underlying connection pool
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
