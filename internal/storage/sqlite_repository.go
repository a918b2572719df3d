package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/taskcal/internal/model"
)

const (
	sqliteTimeLayout = time.RFC3339Nano
	syncedAtKey      = "synced_at"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens the cache at path and brings its schema up to date.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// SaveSnapshot replaces the cached list in one transaction.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, title, content, description, start_at, end_at, complete, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range snap.Tasks {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Title, t.Content, t.Description,
			mustTime(t.Start), nullTime(t.End), int(t.Complete), i,
		); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		syncedAtKey, mustTime(snap.SyncedAt),
	); err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshot returns ErrNoSnapshot until SaveSnapshot has run once.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var synced string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, syncedAtKey).Scan(&synced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, err
	}
	syncedAt, err := parseRequiredTime(synced)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse sync time: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, content, description, start_at, end_at, complete
		FROM tasks ORDER BY position ASC`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	out := Snapshot{Tasks: make([]model.Task, 0), SyncedAt: syncedAt}
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return Snapshot{}, scanErr
		}
		out.Tasks = append(out.Tasks, task)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var start string
	var end sql.NullString
	var complete int
	if err := s.Scan(&out.ID, &out.Title, &out.Content, &out.Description, &start, &end, &complete); err != nil {
		return model.Task{}, err
	}
	startAt, err := parseRequiredTime(start)
	if err != nil {
		return model.Task{}, err
	}
	endAt, err := parseNullableTime(end)
	if err != nil {
		return model.Task{}, err
	}
	out.Start = startAt
	out.End = endAt
	out.Complete = model.Completion(complete)
	return out, nil
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}
