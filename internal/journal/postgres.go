package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists check-ins in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			entry_type TEXT NOT NULL DEFAULT 'text',
			title TEXT NOT NULL DEFAULT '',
			text_content TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			emotion TEXT NOT NULL DEFAULT '',
			emotion_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_user_created ON journal_entries (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveEntry(ctx context.Context, entry Entry) (Entry, error) {
	normalizeEntry(&entry)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO journal_entries
		   (id, user_id, session_id, entry_type, title, text_content, tags, emotion, emotion_confidence, pii_redacted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.UserID,
		entry.SessionID,
		entry.EntryType,
		entry.Title,
		entry.TextContent,
		entry.Tags,
		entry.Emotion,
		entry.EmotionConfidence,
		entry.PIIRedacted,
		entry.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("save entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, entry_type, title, text_content, tags, emotion, emotion_confidence, pii_redacted, created_at
		 FROM journal_entries WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.EntryType, &e.Title,
			&e.TextContent, &e.Tags, &e.Emotion, &e.EmotionConfidence, &e.PIIRedacted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
