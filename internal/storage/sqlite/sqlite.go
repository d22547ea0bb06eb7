// Package sqlite archives building results in a local SQLite database
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/daylight/internal/compliance"
	"github.com/chrissnell/daylight/internal/storage"
	"github.com/chrissnell/daylight/pkg/migrate"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// EngineName labels this backend in logs and metrics
const EngineName = "sqlite"

// MigrationTable tracks the archive schema version
const MigrationTable = "archive_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the migration provider for the archive schema
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", MigrationTable)
}

// RunSummary is one archived run without its payload
type RunSummary struct {
	RunID           string    `json:"run_id"`
	BuildingID      string    `json:"building_id"`
	CalculationDate string    `json:"calculation_date"`
	StartedAt       time.Time `json:"started_at"`
	TotalWindows    int       `json:"total_windows"`
	Compliant       int       `json:"compliant_windows"`
	ComplianceRate  float64   `json:"compliance_rate"`
}

// Storage holds the archive database
type Storage struct {
	db       *sql.DB
	recorder storage.WriteRecorder
	logger   *zap.SugaredLogger
}

// New opens the archive at path and brings its schema up to date.
// recorder may be nil.
func New(ctx context.Context, path string, recorder storage.WriteRecorder, logger *zap.SugaredLogger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite archive: %w", err)
	}
	// A single connection serializes writers; SQLite allows one at a time anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite archive: %w", err)
	}

	if err := migrate.NewMigrator(db, Migrations()).WithLogger(logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	logger.Infow("SQLite archive ready", "path", path)
	return &Storage{db: db, recorder: recorder, logger: logger}, nil
}

// StartStorageEngine starts a goroutine that archives results sent on the
// returned channel. Closing the channel stops it once the queue is drained.
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- *compliance.BuildingResult {
	s.logger.Info("starting SQLite storage engine...")
	resultChan := make(chan *compliance.BuildingResult, 10)
	wg.Add(1)
	go storage.ProcessResults(ctx, wg, resultChan, s.StoreResult, EngineName, s.recorder, s.logger)
	return resultChan
}

// StoreResult archives r. The payload is the msgpack encoding of the
// compacted result.
func (s *Storage) StoreResult(ctx context.Context, r *compliance.BuildingResult) error {
	payload, err := msgpack.Marshal(r.Compact())
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", r.RunID, err)
	}

	summary := r.Summary()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, building_id, building_name, calculation_date, mode,
		                  started_at, elapsed_ms, total_windows, compliant, compliance_rate, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID.String(), r.BuildingID, r.BuildingName, r.CalculationDate.Format(time.DateOnly), string(r.Mode),
		r.StartedAt.UnixNano(), r.Elapsed.Milliseconds(), summary.Total, summary.Compliant, summary.ComplianceRate,
		payload,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}
	return nil
}

// LatestRun returns the most recently started run for buildingID
func (s *Storage) LatestRun(ctx context.Context, buildingID string) (*compliance.BuildingResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM runs
		WHERE building_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1
	`, buildingID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run of %s: %w", buildingID, err)
	}

	var r compliance.BuildingResult
	if err := msgpack.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decoding latest run of %s: %w", buildingID, err)
	}
	return &r, nil
}

// ListRuns returns up to limit run summaries for buildingID, newest first
func (s *Storage) ListRuns(ctx context.Context, buildingID string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, building_id, calculation_date, started_at, total_windows, compliant, compliance_rate
		FROM runs
		WHERE building_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, buildingID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs of %s: %w", buildingID, err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var rs RunSummary
		var started int64
		if err := rows.Scan(&rs.RunID, &rs.BuildingID, &rs.CalculationDate, &started,
			&rs.TotalWindows, &rs.Compliant, &rs.ComplianceRate); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		rs.StartedAt = time.Unix(0, started)
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// CheckHealth pings the archive database
func (s *Storage) CheckHealth(ctx context.Context) *storage.Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return storage.CreateHealth(storage.StatusUnhealthy, "ping failed", err)
	}
	var runs int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&runs); err != nil {
		return storage.CreateHealth(storage.StatusUnhealthy, "query failed", err)
	}
	return storage.CreateHealth(storage.StatusHealthy, fmt.Sprintf("%d runs archived", runs), nil)
}

// Close closes the archive database
func (s *Storage) Close() error {
	return s.db.Close()
}
