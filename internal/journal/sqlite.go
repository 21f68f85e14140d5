package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists check-ins in a local sqlite file.
type SQLiteStore struct {
	conn *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite journal: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		entry_type TEXT NOT NULL DEFAULT 'text',
		title TEXT NOT NULL DEFAULT '',
		text_content TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		emotion TEXT NOT NULL DEFAULT '',
		emotion_confidence REAL NOT NULL DEFAULT 0,
		pii_redacted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_entries_user_created
		ON journal_entries (user_id, created_at);
	`
	if _, err := conn.Exec(query); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create journal table: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) SaveEntry(ctx context.Context, entry Entry) (Entry, error) {
	normalizeEntry(&entry)

	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return Entry{}, fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO journal_entries
		   (id, user_id, session_id, entry_type, title, text_content, tags, emotion, emotion_confidence, pii_redacted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.SessionID, entry.EntryType, entry.Title,
		entry.TextContent, string(tags), entry.Emotion, entry.EmotionConfidence, entry.PIIRedacted, entry.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("save entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, session_id, entry_type, title, text_content, tags, emotion, emotion_confidence, pii_redacted, created_at
		 FROM journal_entries WHERE user_id=? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e    Entry
			tags string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.EntryType, &e.Title,
			&e.TextContent, &tags, &e.Emotion, &e.EmotionConfidence, &e.PIIRedacted, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		if tags != "" && tags != "null" {
			_ = json.Unmarshal([]byte(tags), &e.Tags)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func normalizeEntry(entry *Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.EntryType == "" {
		entry.EntryType = "text"
	}
}
