package reccache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the side-channel slot in PostgreSQL, sharing the
// deployment's database when one is configured.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	stmt := `CREATE TABLE IF NOT EXISTS recommendation_cache (
		slot TEXT PRIMARY KEY,
		emotion TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		recommendations JSONB,
		ts TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Write(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	var recs any
	if len(entry.Recommendations) > 0 {
		recs = string(entry.Recommendations)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendation_cache (slot, emotion, confidence, recommendations, ts)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (slot) DO UPDATE SET
		   emotion=EXCLUDED.emotion,
		   confidence=EXCLUDED.confidence,
		   recommendations=EXCLUDED.recommendations,
		   ts=EXCLUDED.ts`,
		SlotKey, entry.Emotion, entry.Confidence, recs, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("write cache slot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context) (*Entry, error) {
	var (
		entry Entry
		recs  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT emotion, confidence, recommendations, ts FROM recommendation_cache WHERE slot = $1`,
		SlotKey,
	).Scan(&entry.Emotion, &entry.Confidence, &recs, &entry.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	if len(recs) > 0 && json.Valid(recs) {
		entry.Recommendations = json.RawMessage(recs)
	}
	return &entry, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
