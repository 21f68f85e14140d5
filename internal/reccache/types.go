package reccache

import (
	"context"
	"encoding/json"
	"time"
)

// SlotKey is the single well-known key of the side-channel. Only the most
// recent check-in's result is ever retrievable: last write wins.
const SlotKey = "latest_checkin"

// Entry is the durable hand-off record bridging a capture session to the
// recommendations view, which reads it later with no live link back.
type Entry struct {
	Emotion         string          `json:"emotion"`
	Confidence      float64         `json:"confidence"`
	Recommendations json.RawMessage `json:"recommendations,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Store is a one-slot durable cache. Write overwrites the slot; Read returns
// (nil, nil) when the slot is empty or its content cannot be decoded.
// The inference coordinator is the sole writer.
type Store interface {
	Write(ctx context.Context, entry Entry) error
	Read(ctx context.Context) (*Entry, error)
	Close() error
}
