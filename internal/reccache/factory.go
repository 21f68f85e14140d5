package reccache

import (
	"context"
	"strings"
)

// NewStore picks a backend: postgres when a database URL is configured,
// sqlite when a cache path is configured, otherwise in-memory for local/dev.
func NewStore(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(sqlitePath)
	}
	return NewInMemoryStore(), nil
}
