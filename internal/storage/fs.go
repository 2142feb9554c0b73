package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/studynotes/internal/apperr"
)

// FS implements Bucket backed by the local file system. Objects are served
// by Handler under baseURL.
type FS struct {
	root    string // absolute path to bucket directory
	baseURL string
}

// NewFS creates a new FS bucket rooted at the given directory, creating it
// if needed.
func NewFS(root, baseURL string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, baseURL: baseURL}, nil
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("storage: empty path")
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes bucket root: %s", rel)
	}
	return abs, nil
}

// Upload writes the object through a temp file and links it into place, so
// readers never see a partial file and an existing object is never
// replaced.
func (f *FS) Upload(ctx context.Context, path string, r io.Reader, _ int64, _ string) error {
	_, span := tracer.Start(ctx, "fs.upload", trace.WithAttributes(attribute.String("object_key", path)))
	defer span.End()

	err := f.put(path, r, span)
	if err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
		return apperr.Upstream(opUpload, err)
	}
	return err
}

func (f *FS) put(path string, r io.Reader, span trace.Span) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err == nil {
		return apperr.ErrAlreadyExists
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		span.RecordError(err)
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, os.ErrExist) {
			return apperr.ErrAlreadyExists
		}
		span.RecordError(err)
		return fmt.Errorf("storage: link: %w", err)
	}
	return nil
}

// Remove deletes an object and prunes the owner directory once empty.
func (f *FS) Remove(ctx context.Context, path string) error {
	_, span := tracer.Start(ctx, "fs.remove", trace.WithAttributes(attribute.String("object_key", path)))
	defer span.End()

	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		span.RecordError(err)
		return apperr.Upstream(opRemove, fmt.Errorf("storage: delete %s: %w", path, err))
	}
	if dir := filepath.Dir(abs); dir != f.root {
		_ = os.Remove(dir) // fails while other objects remain
	}
	return nil
}

// Exists reports whether a regular file is stored at path.
func (f *FS) Exists(_ context.Context, path string) (bool, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Upstream(opCheck, fmt.Errorf("storage: stat %s: %w", path, err))
	}
	return info.Mode().IsRegular(), nil
}

// PublicURL returns baseURL/<path>.
func (f *FS) PublicURL(path string) string {
	return joinURL(f.baseURL, path)
}

// Handler serves stored objects. Mount it with the base URL's path prefix
// stripped.
func (f *FS) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		abs, err := f.safePath(strings.TrimPrefix(r.URL.Path, "/"))
		if err != nil {
			http.Error(w, "bad path", http.StatusBadRequest)
			return
		}
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFile(w, r, abs)
	})
}
