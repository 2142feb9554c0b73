package noteservice

import (
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/studynotes/internal/apperr"
)

// MaxUploadBytes is the largest accepted file.
const MaxUploadBytes = 20 << 20

var allowedTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Rules describes what an upload may contain.
type Rules struct {
	MaxBytes   int64    `json:"max_bytes"`
	Extensions []string `json:"extensions"`
	MIMETypes  []string `json:"mime_types"`
}

// UploadRules returns the accepted extensions and MIME types, sorted.
func UploadRules() Rules {
	r := Rules{MaxBytes: MaxUploadBytes}
	for ext, mt := range allowedTypes {
		r.Extensions = append(r.Extensions, ext)
		if !slices.Contains(r.MIMETypes, mt) {
			r.MIMETypes = append(r.MIMETypes, mt)
		}
	}
	slices.Sort(r.Extensions)
	slices.Sort(r.MIMETypes)
	return r
}

// ValidateUpload checks a file against the allow-list and size limit and
// returns the content type to store it with. A declared type that is empty
// or application/octet-stream is replaced by the type of the extension;
// any other declared type must match it.
func ValidateUpload(filename, contentType string, size int64) (string, error) {
	if size <= 0 {
		return "", apperr.Invalid("file is empty")
	}
	if size > MaxUploadBytes {
		return "", apperr.WithDetail(apperr.ErrTooLarge, "file exceeds the %d MB limit", MaxUploadBytes>>20)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowedTypes[ext]
	if !ok {
		return "", apperr.Invalid("file type %q is not allowed", ext)
	}

	declared := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		declared = mt
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	switch declared {
	case "", "application/octet-stream":
		return want, nil
	case want:
		return want, nil
	}
	return "", apperr.Invalid("content type %q does not match %s", declared, ext)
}

// FileType is the stored file_type: the extension without the dot,
// upper-cased.
func FileType(filename string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// ParseTags splits a comma separated tag list, trimming each element and
// dropping empty ones. The result is never nil.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
