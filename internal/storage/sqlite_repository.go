package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Open creates the parent directory, opens the database and applies the
// embedded migrations. It is what the application uses at startup.
func Open(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	repo, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(repo.db); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) GetState(ctx context.Context, key string) (StateEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT key, value, updated_at FROM client_state WHERE key = ?`, key)
	item, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StateEntry{}, ErrNotFound
		}
		return StateEntry{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) PutState(ctx context.Context, in StateEntry) error {
	if strings.TrimSpace(in.Key) == "" {
		return errors.New("storage: state key is required")
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO client_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		in.Key, in.Value, mustTime(in.UpdatedAt),
	)
	return err
}

func (r *SQLiteRepository) DeleteState(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// Purge drops and recreates every table, leaving an empty store on the
// current schema.
func (r *SQLiteRepository) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := MigrateDown(r.db); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	if err := MigrateUp(r.db); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(s scanner) (StateEntry, error) {
	var out StateEntry
	var updated string
	if err := s.Scan(&out.Key, &out.Value, &updated); err != nil {
		return StateEntry{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return StateEntry{}, err
	}
	out.UpdatedAt = updatedAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
