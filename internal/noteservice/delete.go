package noteservice

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/storage"
)

// Delete removes one of the caller's notes and its object. A note owned by
// someone else is left untouched. Failing to remove the object does not stop
// the row delete; the object goes on the orphan queue.
func (s *Service) Delete(ctx context.Context, caller, id string) error {
	if caller == "" {
		return apperr.ErrUnauthenticated
	}
	ctx, span := tracer.Start(ctx, "noteservice.delete",
		trace.WithAttributes(attribute.String("note_id", id)))
	defer span.End()

	n, err := s.repo.GetNote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.WithDetail(apperr.ErrNotFound, "note not found")
	}
	if err != nil {
		return err
	}
	if n.UploadedBy != caller {
		return apperr.WithDetail(apperr.ErrForbidden, "not authorized to delete this note")
	}

	path, err := storage.PathFromURL(n.FileURL)
	if err != nil {
		slog.Warn("note has no object path",
			slog.String("note_id", id),
			slog.String("error", err.Error()))
	} else if err := s.bucket.Remove(ctx, path); err != nil {
		span.RecordError(err)
		slog.Warn("remove object failed, continuing with delete",
			slog.String("note_id", id),
			slog.String("path", path),
			slog.String("error", err.Error()))
		s.enqueueOrphan(ctx, path)
	}

	if err := s.repo.DeleteNote(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	slog.Info("note deleted", slog.String("note_id", id), slog.String("owner", caller))
	s.publish(caller, EventDeleted, *n)
	return nil
}
