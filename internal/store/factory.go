package store

import (
	"context"
	"strings"
)

// New selects the backing store: Postgres when a database URL is
// configured, otherwise the local SQLite file, or pure in-memory when the
// path is empty too.
func New(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(sqlitePath) != "" {
		return NewSQLiteStore(ctx, sqlitePath)
	}
	return NewInMemoryStore(), nil
}
