package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/lib/pq"
)

// PostgresStore writes the same users/progress tables the REST endpoint
// exposes, straight over a database connection.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("Connected to PostgreSQL")

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT,
			display_name TEXT NOT NULL,
			photo_url TEXT,
			avatar TEXT,
			badges TEXT[] NOT NULL DEFAULT '{}',
			season TEXT NOT NULL DEFAULT '',
			achievements TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS progress (
			user_id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS player_telemetry (
			id BIGSERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, photo_url, badges, season, achievements)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, snap.User.ID, nullString(snap.User.Username), snap.User.DisplayName, snap.User.Photo,
		pq.Array(defaultBadges), currentSeasonName, defaultAchievements)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress (user_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, snap.User.ID, string(data))
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (*Snapshot, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data
		FROM progress
		WHERE user_id = $1
	`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	return snapshotFromRow(userID, raw), nil
}

// snapshotFromRow decodes a progress row. Malformed data counts as absent.
func snapshotFromRow(userID string, raw []byte) *Snapshot {
	var progress Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		log.Println("Database store: ignoring malformed progress for", userID+":", err)
		return nil
	}
	return &Snapshot{User: User{ID: userID}, Progress: progress}
}

func (s *PostgresStore) FetchProfile(ctx context.Context, user User) (*Profile, error) {
	var p Profile
	var avatar sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT display_name, avatar, badges, season, achievements
		FROM users
		WHERE id = $1
	`, user.ID).Scan(&p.DisplayName, &avatar, pq.Array(&p.Badges), &p.Season, &p.Achievements)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Avatar = avatar.String
	return &p, nil
}

// TopPlayers ranks stored progress by lifetime earnings.
func (s *PostgresStore) TopPlayers(ctx context.Context, limit int) ([]RatingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			COALESCE(u.display_name, p.user_id) AS display_name,
			COALESCE((p.data->>'totalCoins')::DOUBLE PRECISION, 0) AS total_coins
		FROM progress p
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY total_coins DESC, p.updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []RatingEntry{}
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		entries = append(entries, ratingEntryFromRow(len(entries)+1, name, total))
	}
	return entries, rows.Err()
}

func ratingEntryFromRow(rank int, displayName string, totalCoins float64) RatingEntry {
	return RatingEntry{
		Rank:        rank,
		DisplayName: displayName,
		Coins:       int64(math.Floor(math.Max(totalCoins, 0))),
		League:      leagueFor(rank),
	}
}

func (s *PostgresStore) RecordTelemetry(ctx context.Context, ev TelemetryEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO player_telemetry (event_id, user_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.ID.String(), ev.UserID, ev.Type, string(payload), ev.CreatedAt)
	return err
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
