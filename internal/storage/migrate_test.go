package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestMigrateRoundTripCompatibility(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate-roundtrip.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first migrate up failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Fatalf("repeated migrate up failed: %v", err)
	}
	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Fatalf("second migrate up failed: %v", err)
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}

	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	if err := repo.PutState(t.Context(), StateEntry{Key: "authTokens", Value: "{}", UpdatedAt: now}); err != nil {
		t.Fatalf("insert after roundtrip failed: %v", err)
	}
	got, err := repo.GetState(t.Context(), "authTokens")
	if err != nil {
		t.Fatalf("get after roundtrip failed: %v", err)
	}
	if got.Value != "{}" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected entry after roundtrip: %#v", got)
	}
}

func TestMigrateUpRecordsVersions(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "versions.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	applied, err := appliedVersions(db)
	if err != nil {
		t.Fatalf("applied versions: %v", err)
	}
	if !applied["0001_client_state"] || len(applied) != 1 {
		t.Fatalf("unexpected applied versions: %v", applied)
	}

	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	applied, err = appliedVersions(db)
	if err != nil {
		t.Fatalf("applied versions after down: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no applied versions, got %v", applied)
	}
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='client_state'`).Scan(&name)
	if err != sql.ErrNoRows {
		t.Fatalf("expected client_state dropped, got %q err=%v", name, err)
	}
}
