// Package migrate applies versioned SQL migrations to the SQLite databases
// used for configuration and the result archive.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest is the MigrateTo target for the newest available version
const Latest = -1

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Step is one migration applied in one direction
type Step struct {
	Migration Migration
	Up        bool
}

func (s Step) direction() string {
	if s.Up {
		return "up"
	}
	return "down"
}

// Status describes where a database stands against the available migrations
type Status struct {
	Current int
	Latest  int
	Pending []Migration
}

// DB is satisfied by *sql.DB and *sql.Tx
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MigrationProvider loads migrations and tracks the applied version
type MigrationProvider interface {
	Migrations() ([]Migration, error)
	EnsureTable(ctx context.Context, db DB) error
	CurrentVersion(ctx context.Context, db DB) (int, error)
	SetVersion(ctx context.Context, db DB, version int) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   zap.NewNop().Sugar(),
	}
}

// WithLogger makes the migrator log each applied step
func (m *Migrator) WithLogger(logger *zap.SugaredLogger) *Migrator {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, Latest)
}

// MigrateDown rolls back to targetVersion, which must be below the current version
func (m *Migrator) MigrateDown(ctx context.Context, targetVersion int) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}
	return m.MigrateTo(ctx, targetVersion)
}

// MigrateTo moves the schema up or down to targetVersion; Latest means the
// newest available migration
func (m *Migrator) MigrateTo(ctx context.Context, targetVersion int) error {
	steps, err := m.Plan(ctx, targetVersion)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := m.apply(ctx, step); err != nil {
			return fmt.Errorf("migration %d %s: %w", step.Migration.Version, step.direction(), err)
		}
	}
	return nil
}

// Plan returns the steps MigrateTo would run, in order. A rollback through a
// migration without down SQL is rejected before anything runs.
func (m *Migrator) Plan(ctx context.Context, targetVersion int) ([]Step, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := m.sorted()
	if err != nil {
		return nil, err
	}

	if targetVersion == Latest {
		targetVersion = current
		if n := len(migrations); n > 0 && migrations[n-1].Version > current {
			targetVersion = migrations[n-1].Version
		}
	}
	if targetVersion < 0 {
		return nil, fmt.Errorf("invalid target version %d", targetVersion)
	}

	var steps []Step
	if targetVersion >= current {
		for _, mg := range migrations {
			if mg.Version > current && mg.Version <= targetVersion {
				steps = append(steps, Step{Migration: mg, Up: true})
			}
		}
		return steps, nil
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mg := migrations[i]
		if mg.Version > targetVersion && mg.Version <= current {
			if mg.Down == "" {
				return nil, fmt.Errorf("migration %d (%s) cannot be rolled back: no down SQL", mg.Version, mg.Name)
			}
			steps = append(steps, Step{Migration: mg})
		}
	}
	return steps, nil
}

// Version returns the current schema version, creating the tracking table
// if needed
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.provider.EnsureTable(ctx, m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	v, err := m.provider.CurrentVersion(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// Status reports the current and latest versions and the pending migrations
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return Status{}, err
	}
	migrations, err := m.sorted()
	if err != nil {
		return Status{}, err
	}

	st := Status{Current: current, Latest: current}
	for _, mg := range migrations {
		if mg.Version > current {
			st.Pending = append(st.Pending, mg)
		}
		if mg.Version > st.Latest {
			st.Latest = mg.Version
		}
	}
	return st, nil
}

// SetVersion records version without running any SQL (use with caution)
func (m *Migrator) SetVersion(ctx context.Context, version int) error {
	if err := m.provider.EnsureTable(ctx, m.db); err != nil {
		return err
	}
	return m.provider.SetVersion(ctx, m.db, version)
}

func (m *Migrator) sorted() ([]Migration, error) {
	migrations, err := m.provider.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// apply runs one step and its version bump in one transaction
func (m *Migrator) apply(ctx context.Context, step Step) error {
	stmt, newVersion := step.Migration.Up, step.Migration.Version
	if !step.Up {
		stmt, newVersion = step.Migration.Down, step.Migration.Version-1
	}
	if stmt == "" {
		return fmt.Errorf("no %s SQL", step.direction())
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(ctx, tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration",
		"version", step.Migration.Version,
		"name", step.Migration.Name,
		"direction", step.direction())
	return nil
}
