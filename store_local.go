package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LocalStore is the offline fallback: one JSON snapshot per user under
// StorageKey in a SQLite file.
type LocalStore struct {
	db *sql.DB
}

func OpenLocalStore(path string) (*LocalStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create local store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping local store: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS local_storage (
			storage_key TEXT NOT NULL,
			user_id TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (storage_key, user_id)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure local schema: %w", err)
	}

	log.Println("Local store: opened", path)
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.put(ctx, snap.User.ID, string(raw))
}

func (s *LocalStore) put(ctx context.Context, userID string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_storage (storage_key, user_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (storage_key, user_id)
		DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, StorageKey, userID, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write local snapshot: %w", err)
	}
	return nil
}

// Load treats a missing or unreadable snapshot as absent.
func (s *LocalStore) Load(ctx context.Context, userID string) (*Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM local_storage
		WHERE storage_key = ? AND user_id = ?
	`, StorageKey, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Println("Local store: ignoring malformed snapshot for", userID+":", err)
		return nil, nil
	}
	return &snap, nil
}

// FetchProfile serves the stored user as the profile card.
func (s *LocalStore) FetchProfile(ctx context.Context, user User) (*Profile, error) {
	snap, err := s.Load(ctx, user.ID)
	if err != nil || snap == nil {
		return nil, err
	}
	return &Profile{DisplayName: snap.User.DisplayName}, nil
}
