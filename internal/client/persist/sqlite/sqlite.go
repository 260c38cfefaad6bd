// Package sqlite is the default persistence engine: an embedded single-file
// database holding one row per table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/client/persist/sqlite/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type Adapter struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

func RunMigrations(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (a *Adapter) Load(ctx context.Context, table string) ([]byte, error) {
	var value []byte
	err := a.db.QueryRowContext(ctx, `SELECT value FROM tables WHERE name = ?`, table).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load table[%s]: %w", table, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (a *Adapter) Save(ctx context.Context, table string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO tables (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, table, value)
	if err != nil {
		return fmt.Errorf("failed to save table[%s]: %w", table, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, table string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM tables WHERE name = ?`, table)
	if err != nil {
		return fmt.Errorf("failed to delete table[%s]: %w", table, err)
	}
	return nil
}

// Tables lists the stored table names.
func (a *Adapter) Tables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT name FROM tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate table rows: %w", err)
	}
	return out, nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}
