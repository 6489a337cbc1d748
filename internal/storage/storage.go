// Package storage opens taskpad's SQLite database and keeps its schema in sync.
//
// The database is opened through gorm with the pure-Go modernc driver. Stores
// that want plain SQL (tasks, scratchpads) take the *sql.DB from SQL(); the
// rest use the *gorm.DB.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// DB bundles the gorm handle with its underlying connection pool.
type DB struct {
	gdb *gorm.DB
	sql *sql.DB
}

// Open creates the parent directory, opens the database at path and syncs
// the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("storage: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: underlying pool: %w", err)
	}
	// One connection: pragmas apply to it and writers never see SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if err := gdb.Exec(p).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("storage: pragma %q: %w", p, err)
		}
	}

	if err := SyncSchema(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("storage: sync schema: %w", err)
	}
	return &DB{gdb: gdb, sql: sqlDB}, nil
}

// Gorm returns the gorm handle.
func (d *DB) Gorm() *gorm.DB { return d.gdb }

// SQL returns the raw connection pool.
func (d *DB) SQL() *sql.DB { return d.sql }

// Close closes the connection pool.
func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SyncSchema creates or updates tables and indexes from the models.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&Project{},
		&ProjectMember{},
		&Task{},
		&Scratchpad{},
		&SubagentRun{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_parent ON tasks(project_id, parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_seq ON tasks(project_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_subagent_runs_project_created ON subagent_runs(project_id, created_at DESC);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Now returns the current time as an RFC3339 UTC string, the format every
// timestamp column uses.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime formats t the way timestamp columns store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
