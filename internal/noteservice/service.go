// Package noteservice implements the note operations shared by the HTTP API
// and the MCP tools: search, upload, delete and title suggestions.
package noteservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/notequery"
	"github.com/starford/studynotes/internal/orphans"
	"github.com/starford/studynotes/internal/storage"
)

var tracer = otel.Tracer("studynotes/noteservice")

// Repository persists note rows.
type Repository interface {
	InsertNote(ctx context.Context, n *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	FindNotes(ctx context.Context, q notequery.Query) ([]models.Note, error)
	Ping(ctx context.Context) error
}

// Publisher receives note change events.
type Publisher interface {
	PublishNoteEvent(owner, kind string, note models.Note)
}

// Event kinds.
const (
	EventCreated = "created"
	EventDeleted = "deleted"
)

const (
	defaultSuggestions = 5
	maxSuggestions     = 20
	suggestionScan     = 200
)

// Service coordinates the note table and the bucket.
type Service struct {
	repo    Repository
	bucket  storage.Bucket
	orphans orphans.Queue
	events  Publisher
	now     func() time.Time
}

// NewService creates a note service. orphans and events may be nil.
func NewService(repo Repository, bucket storage.Bucket, queue orphans.Queue, events Publisher) *Service {
	return &Service{repo: repo, bucket: bucket, orphans: queue, events: events, now: time.Now}
}

func (s *Service) publish(owner, kind string, n models.Note) {
	if s.events != nil {
		s.events.PublishNoteEvent(owner, kind, n)
	}
}

// Search returns the caller's notes matching p.
func (s *Service) Search(ctx context.Context, caller string, p notequery.Params) ([]models.Note, error) {
	if caller == "" {
		return nil, apperr.ErrUnauthenticated
	}
	q := notequery.Build(caller, p)
	notes, err := s.repo.FindNotes(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.Apply(notes), nil
}

// ListByOwner returns every note of owner, newest first. Callers may only
// list their own notes.
func (s *Service) ListByOwner(ctx context.Context, caller, owner string) ([]models.Note, error) {
	if caller == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if caller != owner {
		return nil, apperr.WithDetail(apperr.ErrForbidden, "not authorized to list these notes")
	}
	return s.repo.FindNotes(ctx, notequery.ForOwner(owner))
}

// GetNote returns one of the caller's notes.
func (s *Service) GetNote(ctx context.Context, caller, id string) (*models.Note, error) {
	n, err := s.repo.GetNote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.WithDetail(apperr.ErrNotFound, "note not found")
	}
	if err != nil {
		return nil, err
	}
	if n.UploadedBy != caller {
		return nil, apperr.WithDetail(apperr.ErrForbidden, "not authorized to view this note")
	}
	return n, nil
}

// Suggestions returns distinct titles of the caller's notes containing
// partial, best match first. Partials shorter than two characters yield an
// empty list.
func (s *Service) Suggestions(ctx context.Context, caller, partial string, limit int) ([]string, error) {
	if caller == "" {
		return nil, apperr.ErrUnauthenticated
	}
	partial = strings.TrimSpace(partial)
	if len([]rune(partial)) < 2 {
		return []string{}, nil
	}
	switch {
	case limit <= 0:
		limit = defaultSuggestions
	case limit > maxSuggestions:
		limit = maxSuggestions
	}

	q := notequery.Build(caller, notequery.Params{Title: partial, SortField: notequery.SortRelevance})
	q.Order = notequery.Order{Field: notequery.FieldTitle}
	q.Limit = suggestionScan
	notes, err := s.repo.FindNotes(ctx, q)
	if err != nil {
		return nil, err
	}

	titles := []string{}
	seen := make(map[string]bool)
	for _, n := range q.Apply(notes) {
		if seen[n.FileName] {
			continue
		}
		seen[n.FileName] = true
		titles = append(titles, n.FileName)
		if len(titles) == limit {
			break
		}
	}
	return titles, nil
}

// Ping reports whether the note table is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
