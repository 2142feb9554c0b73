package datastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/notequery"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (models.Note, error) {
	var n models.Note
	err := s.Scan(&n.ID, &n.FileName, &n.FileDescription, tagsColumn{&n.Tags},
		&n.FileURL, &n.FileType, &n.UploadedBy, timeColumn{&n.CreatedAt})
	return n, err
}

// InsertNote stores a new note row.
func (db *DB) InsertNote(ctx context.Context, n *models.Note) error {
	ctx, span := tracer.Start(ctx, "datastore.insert_note",
		trace.WithAttributes(attribute.String("note_id", n.ID)))
	defer span.End()

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		n.ID, n.FileName, n.FileDescription, tagsArg(n.Tags),
		n.FileURL, n.FileType, n.UploadedBy, db.timeArg(n.CreatedAt))
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fail("insert note", err)
	}
	return nil
}

// GetNote returns the note with the given id. Ids that are not UUIDs can
// never match and yield ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.ErrNotFound
	}
	row := db.conn.QueryRowContext(ctx, db.rebind(`SELECT `+noteColumns+` FROM notes WHERE id = ?`), id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fail("get note", err)
	}
	return &n, nil
}

// DeleteNote removes the note row. Deleting a missing row is not an error.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "datastore.delete_note",
		trace.WithAttributes(attribute.String("note_id", id)))
	defer span.End()

	if _, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM notes WHERE id = ?`), id); err != nil {
		span.RecordError(err)
		return fail("delete note", err)
	}
	return nil
}

// FindNotes runs a compiled search query. The result is never nil.
func (db *DB) FindNotes(ctx context.Context, q notequery.Query) ([]models.Note, error) {
	ctx, span := tracer.Start(ctx, "datastore.find_notes",
		trace.WithAttributes(attribute.Int("terms", len(q.Terms))))
	defer span.End()

	query, args, err := db.compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fail("search notes", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fail("search notes", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("search notes", err)
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}
