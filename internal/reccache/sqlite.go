package reccache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the side-channel slot in a local sqlite file, so it
// survives service restarts without requiring a database server.
type SQLiteStore struct {
	conn *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite cache: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS recommendation_cache (
		slot TEXT PRIMARY KEY,
		emotion TEXT NOT NULL,
		confidence REAL NOT NULL,
		recommendations TEXT,
		ts DATETIME NOT NULL
	);
	`
	if _, err := conn.Exec(query); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Write(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	recs := ""
	if len(entry.Recommendations) > 0 {
		recs = string(entry.Recommendations)
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO recommendation_cache (slot, emotion, confidence, recommendations, ts)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   emotion=excluded.emotion,
		   confidence=excluded.confidence,
		   recommendations=excluded.recommendations,
		   ts=excluded.ts`,
		SlotKey, entry.Emotion, entry.Confidence, recs, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("write cache slot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context) (*Entry, error) {
	var (
		entry Entry
		recs  sql.NullString
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT emotion, confidence, recommendations, ts FROM recommendation_cache WHERE slot = ?`,
		SlotKey,
	).Scan(&entry.Emotion, &entry.Confidence, &recs, &entry.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		// Malformed rows are treated as absence, not failure.
		return nil, nil
	}
	if recs.Valid && recs.String != "" && json.Valid([]byte(recs.String)) {
		entry.Recommendations = json.RawMessage(recs.String)
	}
	return &entry, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
