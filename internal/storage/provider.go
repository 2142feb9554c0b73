// Package storage defines the object bucket that holds uploaded note files.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("studynotes/storage")

// Bucket is the interface for note file operations. Paths have the form
// <owner-id>/<object-name>.
type Bucket interface {
	// Upload stores r at path. An existing object is never overwritten;
	// the call fails with apperr.ErrAlreadyExists instead.
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	// Remove deletes the object at path. Removing a missing object succeeds.
	Remove(ctx context.Context, path string) error
	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
	// PublicURL returns the URL the object is served from.
	PublicURL(path string) string
}

// Ops reported by adapters. Backend failures other than
// apperr.ErrAlreadyExists come back as *apperr.UpstreamError.
const (
	opUpload = "upload file"
	opRemove = "remove file"
	opCheck  = "check file"
)

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName reduces a client-supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "file"
	}
	return name
}

// ObjectPath builds the storage path of a new upload:
// <owner>/<unix-millis>-<sanitized-stem><ext>.
func ObjectPath(owner string, now time.Time, filename string) string {
	name := SanitizeName(filename)
	return owner + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + name
}

// PathFromURL recovers the storage path from a public URL: the last two
// path segments.
func PathFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("storage: parse url: %w", err)
	}
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) < 2 {
		return "", fmt.Errorf("storage: url %q has no object path", raw)
	}
	return segs[len(segs)-2] + "/" + segs[len(segs)-1], nil
}

// joinURL appends an object path to a base URL, escaping each segment.
func joinURL(base, objectPath string) string {
	segs := strings.Split(objectPath, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}
