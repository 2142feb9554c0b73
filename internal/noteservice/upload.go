package noteservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/orphans"
	"github.com/starford/studynotes/internal/storage"
)

// Outcome is the end state of an upload.
type Outcome string

const (
	// OutcomeFailed: the object was never stored; nothing to undo.
	OutcomeFailed Outcome = "failed"
	// OutcomeCommitted: object and row both exist.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRolledBack: the row insert failed and the object was removed.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeOrphaned: the row insert failed and so did the removal; the
	// object path was handed to the orphan queue.
	OutcomeOrphaned Outcome = "orphaned"
)

// UploadError reports a failed upload together with how far it got. It
// unwraps to the error that stopped the upload.
type UploadError struct {
	Outcome Outcome
	Path    string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s (%s): %v", e.Path, e.Outcome, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// UploadInput is one file upload.
type UploadInput struct {
	Owner       string
	Title       string
	Description string
	// Tags is the raw comma separated list.
	Tags        string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate trims the text fields and checks them and the file against
// UploadRules. It returns the content type to store the object with.
func (in *UploadInput) Validate() (string, error) {
	if in.Owner == "" {
		return "", apperr.ErrUnauthenticated
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	err := validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required.Error("title is required"), validation.RuneLength(1, 255)),
		validation.Field(&in.Description, validation.RuneLength(0, 2000)),
		validation.Field(&in.FileName, validation.Required.Error("file is required")),
	)
	if err != nil {
		return "", apperr.Invalid("%s", err.Error())
	}
	if in.Body == nil {
		return "", apperr.Invalid("file is required")
	}
	return ValidateUpload(in.FileName, in.ContentType, in.Size)
}

// Upload stores the file and records its note row. Validation happens before
// any storage call. If the row cannot be inserted the stored object is
// removed once; a failed removal leaves the object on the orphan queue.
// Failures are returned as *UploadError.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Note, error) {
	contentType, err := in.Validate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	path := storage.ObjectPath(in.Owner, now, in.FileName)

	ctx, span := tracer.Start(ctx, "noteservice.upload",
		trace.WithAttributes(
			attribute.String("owner", in.Owner),
			attribute.String("path", path),
			attribute.Int64("size", in.Size),
		))
	defer span.End()

	log := slog.With(slog.String("owner", in.Owner), slog.String("path", path))

	if err := s.bucket.Upload(ctx, path, in.Body, in.Size, contentType); err != nil {
		span.RecordError(err)
		log.Error("upload failed", slog.String("outcome", string(OutcomeFailed)), slog.String("error", err.Error()))
		return nil, &UploadError{Outcome: OutcomeFailed, Path: path, Err: err}
	}

	desc := in.Description
	if desc == "" {
		desc = in.Title
	}
	note := &models.Note{
		ID:              uuid.NewString(),
		FileName:        in.Title,
		FileDescription: desc,
		Tags:            ParseTags(in.Tags),
		FileURL:         s.bucket.PublicURL(path),
		FileType:        FileType(in.FileName),
		UploadedBy:      in.Owner,
		CreatedAt:       now.UTC(),
	}

	if err := s.repo.InsertNote(ctx, note); err != nil {
		span.RecordError(err)
		outcome := s.compensate(ctx, path)
		log.Error("upload failed",
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()))
		return nil, &UploadError{Outcome: outcome, Path: path, Err: err}
	}

	span.SetAttributes(attribute.String("note_id", note.ID))
	log.Info("upload committed", slog.String("note_id", note.ID), slog.String("outcome", string(OutcomeCommitted)))
	s.publish(in.Owner, EventCreated, *note)
	return note, nil
}

// compensate removes the object of a failed upload. The removal is tried
// exactly once, even if the request was cancelled meanwhile.
func (s *Service) compensate(ctx context.Context, path string) Outcome {
	ctx = context.WithoutCancel(ctx)
	err := s.bucket.Remove(ctx, path)
	if err == nil {
		return OutcomeRolledBack
	}
	slog.Warn("compensating remove failed",
		slog.String("path", path),
		slog.String("error", err.Error()))
	s.enqueueOrphan(ctx, path)
	return OutcomeOrphaned
}

func (s *Service) enqueueOrphan(ctx context.Context, path string) {
	if s.orphans == nil {
		slog.Error("orphaned object, no queue configured", slog.String("path", path))
		return
	}
	if err := s.orphans.Enqueue(ctx, orphans.Item{Path: path}); err != nil {
		slog.Error("enqueue orphan",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
