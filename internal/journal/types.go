package journal

import (
	"context"
	"time"
)

// Entry is one saved check-in: the journal text plus the emotion snapshot
// that was current when the user hit save.
type Entry struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	SessionID         string    `json:"session_id,omitempty"`
	EntryType         string    `json:"entry_type"`
	Title             string    `json:"title,omitempty"`
	TextContent       string    `json:"text_content"`
	Tags              []string  `json:"tags,omitempty"`
	Emotion           string    `json:"emotion,omitempty"`
	EmotionConfidence float64   `json:"emotion_confidence,omitempty"`
	PIIRedacted       bool      `json:"pii_redacted,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Store persists and retrieves check-in entries.
type Store interface {
	SaveEntry(ctx context.Context, entry Entry) (Entry, error)
	RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error)
	Close() error
}
