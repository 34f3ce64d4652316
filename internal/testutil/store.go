// Package testutil provides shared test fixtures for packages that exercise
// the notification store.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/petergaultney/lemonaid/internal/db"
	"github.com/petergaultney/lemonaid/internal/model"
)

func NewStore(t *testing.T) (*db.Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "lemonaid-test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store, ctx
}

// SeedNotification inserts an unread notification and returns it.
func SeedNotification(t *testing.T, store *db.Store, ctx context.Context, channel, message string, metadata map[string]string) model.Notification {
	t.Helper()
	n, err := store.Upsert(ctx, channel, message, metadata, "")
	if err != nil {
		t.Fatalf("seed notification %s: %v", channel, err)
	}
	return n
}
