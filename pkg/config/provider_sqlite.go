package config

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chrissnell/daylight/pkg/migrate"
	_ "modernc.org/sqlite"
)

// MigrationTable tracks the settings schema version
const MigrationTable = "config_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the migration provider for the settings schema
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", MigrationTable)
}

// SQLiteProvider implements ConfigProvider on a SQLite database holding
// dotted keys (calculation.keo.min_keo) in a settings table
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens dbPath and brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.NewMigrator(db, Migrations()).MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate settings schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig decodes the stored settings over the defaults. Values are
// stored as text and converted to the field types on decode.
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}

	tree, err := nest(settings)
	if err != nil {
		return nil, err
	}

	v := newViper()
	if err := v.MergeConfigMap(tree); err != nil {
		return nil, fmt.Errorf("merging settings: %w", err)
	}
	return decode(v)
}

// Settings returns every stored key and its raw value
func (s *SQLiteProvider) Settings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SetSetting inserts or replaces a single key
func (s *SQLiteProvider) SetSetting(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("setting key must not be empty")
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key so that its default applies again
func (s *SQLiteProvider) DeleteSetting(key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, strings.ToLower(key)); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// SaveConfig replaces the stored settings with every key of cfg
func (s *SQLiteProvider) SaveConfig(cfg *ConfigData) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	flat, err := flatten(cfg)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, k, flat[k]); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false since the settings table can be edited
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// nest turns dotted keys into the nested map viper merges
func nest(settings map[string]string) (map[string]any, error) {
	tree := make(map[string]any)
	for key, value := range settings {
		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			switch child := node[p].(type) {
			case nil:
				next := make(map[string]any)
				node[p] = next
				node = next
			case map[string]any:
				node = child
			default:
				return nil, fmt.Errorf("setting %s conflicts with a value at %s", key, p)
			}
		}
		leaf := parts[len(parts)-1]
		if _, isBranch := node[leaf].(map[string]any); isBranch {
			return nil, fmt.Errorf("setting %s conflicts with nested settings", key)
		}
		node[leaf] = value
	}
	return tree, nil
}

// flatten renders cfg as dotted keys with text values, the inverse of nest
func flatten(cfg *ConfigData) (map[string]string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	flat := make(map[string]string)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			switch val := v.(type) {
			case map[string]any:
				walk(key, val)
			case float64:
				flat[key] = strconv.FormatFloat(val, 'g', -1, 64)
			case bool:
				flat[key] = strconv.FormatBool(val)
			case string:
				flat[key] = val
			}
		}
	}
	walk("", tree)
	return flat, nil
}
