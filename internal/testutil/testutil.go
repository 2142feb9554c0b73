// Package testutil provides shared test helpers for setting up databases and
// buckets.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/studynotes/internal/datastore"
	"github.com/starford/studynotes/internal/storage"
)

// TestDB creates a migrated SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *datastore.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studynotes-test.db")
	db, err := datastore.Open(context.Background(), datastore.DialectSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBucket creates a temporary file-system bucket.
func TestBucket(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	bucket, err := storage.NewFS(dir, "http://localhost/files")
	if err != nil {
		t.Fatal(err)
	}
	return dir, bucket
}
