package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/studynotes/internal/apperr"
)

func tempBucket(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestUploadAndExists(t *testing.T) {
	s := tempBucket(t)
	ctx := context.Background()

	if err := s.Upload(ctx, "u1/1-notes.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	ok, err := s.Exists(ctx, "u1/1-notes.pdf")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	data, err := os.ReadFile(filepath.Join(s.root, "u1", "1-notes.pdf"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("content = %q", data)
	}
}

func TestUploadNeverOverwrites(t *testing.T) {
	s := tempBucket(t)
	ctx := context.Background()

	_ = s.Upload(ctx, "u1/a.txt", strings.NewReader("first"), 5, "text/plain")
	err := s.Upload(ctx, "u1/a.txt", strings.NewReader("second"), 6, "text/plain")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second upload err = %v, want ErrAlreadyExists", err)
	}
	data, _ := os.ReadFile(filepath.Join(s.root, "u1", "a.txt"))
	if string(data) != "first" {
		t.Errorf("content = %q, want first", data)
	}
}

func TestUploadLeavesNoTempFiles(t *testing.T) {
	s := tempBucket(t)
	_ = s.Upload(context.Background(), "u1/a.txt", strings.NewReader("x"), 1, "text/plain")

	entries, err := os.ReadDir(filepath.Join(s.root, "u1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestRemove(t *testing.T) {
	s := tempBucket(t)
	ctx := context.Background()
	_ = s.Upload(ctx, "u1/del.txt", strings.NewReader("bye"), 3, "text/plain")

	if err := s.Remove(ctx, "u1/del.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := s.Exists(ctx, "u1/del.txt"); ok {
		t.Error("object still exists")
	}
	if _, err := os.Stat(filepath.Join(s.root, "u1")); !os.IsNotExist(err) {
		t.Error("empty owner directory should be pruned")
	}
	if err := s.Remove(ctx, "u1/del.txt"); err != nil {
		t.Errorf("removing a missing object: %v", err)
	}
}

func TestPathTraversalBlocked(t *testing.T) {
	s := tempBucket(t)
	ctx := context.Background()
	cases := []string{"../escape.txt", "../../etc/passwd", "/etc/passwd", "u1/../../x"}
	for _, p := range cases {
		if err := s.Upload(ctx, p, strings.NewReader("bad"), 3, ""); err == nil {
			t.Errorf("Upload(%q) should fail", p)
		}
		if _, err := s.Exists(ctx, p); err == nil {
			t.Errorf("Exists(%q) should fail", p)
		}
	}
}

func TestPublicURLAndHandler(t *testing.T) {
	s := tempBucket(t)
	_ = s.Upload(context.Background(), "u1/17-my_notes.txt", strings.NewReader("hello"), 5, "text/plain")

	if got := s.PublicURL("u1/17-my_notes.txt"); got != "http://localhost:8080/files/u1/17-my_notes.txt" {
		t.Errorf("PublicURL = %q", got)
	}

	srv := httptest.NewServer(http.StripPrefix("/files", s.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/files/u1/17-my_notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "hello" {
		t.Errorf("GET = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/files/u1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("directory GET = %d, want 404", resp.StatusCode)
	}
}

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	got := ObjectPath("u1", now, "../My Notes (final).pdf")
	if got != "u1/1700000000123-My_Notes__final_.pdf" {
		t.Errorf("ObjectPath = %q", got)
	}
	if got := ObjectPath("u1", now, ".."); got != "u1/1700000000123-file" {
		t.Errorf("ObjectPath(..) = %q", got)
	}
}

func TestPathFromURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/files/u1/17-a.pdf":                  "u1/17-a.pdf",
		"https://x.supabase.co/storage/v1/object/public/notes/u/f": "u/f",
		"https://cdn.example.com/u1/17-a%20b.pdf":                  "u1/17-a b.pdf",
	}
	for in, want := range cases {
		got, err := PathFromURL(in)
		if err != nil {
			t.Fatalf("PathFromURL(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("PathFromURL(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := PathFromURL("https://cdn.example.com/only"); err == nil {
		t.Error("expected error for single segment")
	}
}

func TestPublicURLRoundTrip(t *testing.T) {
	s := tempBucket(t)
	p := ObjectPath("owner-1", time.UnixMilli(42), "lecture 1.pdf")
	got, err := PathFromURL(s.PublicURL(p))
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("round trip = %q, want %q", got, p)
	}
}
