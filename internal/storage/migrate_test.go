package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandeepkv93/taskcal/internal/model"
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
	snap := Snapshot{
		Tasks:    []model.Task{{ID: "rt-1", Title: "Roundtrip task", Content: "Roundtrip task", Start: now}},
		SyncedAt: now,
	}
	if err := repo.SaveSnapshot(t.Context(), snap); err != nil {
		t.Fatalf("save after roundtrip failed: %v", err)
	}

	got, err := repo.LoadSnapshot(t.Context())
	if err != nil {
		t.Fatalf("load after roundtrip failed: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "Roundtrip task" {
		t.Fatalf("unexpected snapshot after roundtrip: %+v", got.Tasks)
	}
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "twice.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := MigrateUp(db); err != nil {
			t.Fatalf("migrate up #%d: %v", i+1, err)
		}
	}
	v, err := schemaVersion(db)
	if err != nil || v != 1 {
		t.Fatalf("expected schema version 1, got %d (%v)", v, err)
	}

	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if v, _ := schemaVersion(db); v != 0 {
		t.Fatalf("expected schema version 0 after down, got %d", v)
	}
}
