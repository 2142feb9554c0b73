package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/models"
	"github.com/starford/studynotes/internal/notequery"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *DB, owner, title, fileType string, tags []string, created time.Time) models.Note {
	t.Helper()
	n := models.Note{
		ID:              uuid.NewString(),
		FileName:        title,
		FileDescription: title,
		Tags:            tags,
		FileURL:         "http://localhost/files/" + owner + "/" + title,
		FileType:        fileType,
		UploadedBy:      owner,
		CreatedAt:       created,
	}
	if err := db.InsertNote(context.Background(), &n); err != nil {
		t.Fatalf("InsertNote: %v", err)
	}
	return n
}

func names(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.FileName
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertAndGetNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := seed(t, db, "alice", "Biology", "PDF", []string{"exam", "bio"}, base)

	got, err := db.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.FileName != "Biology" || got.UploadedBy != "alice" || got.FileType != "PDF" {
		t.Errorf("got %+v", got)
	}
	if !equal(got.Tags, []string{"exam", "bio"}) {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{uuid.NewString(), "not-a-uuid", ""} {
		if _, err := db.GetNote(context.Background(), id); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetNote(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestEmptyTagsAreNeverNil(t *testing.T) {
	db := testDB(t)
	n := seed(t, db, "alice", "No tags", "TXT", nil, base)
	got, err := db.GetNote(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("tags = %#v, want empty slice", got.Tags)
	}
}

func TestDuplicateIDIsConflict(t *testing.T) {
	db := testDB(t)
	n := seed(t, db, "alice", "A", "PDF", nil, base)
	if err := db.InsertNote(context.Background(), &n); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n := seed(t, db, "alice", "A", "PDF", nil, base)

	if err := db.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := db.GetNote(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if err := db.DeleteNote(ctx, n.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestFindNotesOwnerIsolation(t *testing.T) {
	db := testDB(t)
	seed(t, db, "alice", "Biology", "PDF", []string{"exam"}, base)
	seed(t, db, "bob", "Biology", "PDF", []string{"exam"}, base)

	got, err := db.FindNotes(context.Background(), notequery.Build("alice", notequery.Params{
		Title: "bio", Tag: "exam", FileTypes: []string{"pdf"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UploadedBy != "alice" {
		t.Fatalf("got %+v", got)
	}
}

func TestFindNotesFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "alice", "Intro to Biology", "PDF", []string{"bio", "exam"}, base)
	seed(t, db, "alice", "Chemistry", "DOCX", []string{"chem"}, base.Add(24*time.Hour))
	seed(t, db, "alice", "100% Chemistry", "PNG", []string{"chem", "exam"}, base.Add(48*time.Hour))
	seed(t, db, "alice", "Examples", "PDF", []string{"examples"}, base.Add(72*time.Hour))
	seed(t, db, "bob", "Zoology", "PDF", nil, base)
	seed(t, db, "bob", "Über Physik", "PDF", nil, base.Add(time.Hour))
	seed(t, db, "bob", "algebra", "PDF", nil, base.Add(2*time.Hour))

	type filterCase struct {
		name string
		p    notequery.Params
		want []string
	}
	cases := []filterCase{
		{"all newest first", notequery.Params{}, []string{"Examples", "100% Chemistry", "Chemistry", "Intro to Biology"}},
		{"title case-insensitive", notequery.Params{Title: "BIOLOGY"}, []string{"Intro to Biology"}},
		{"title wildcard is literal", notequery.Params{Title: "100%"}, []string{"100% Chemistry"}},
		{"underscore is literal", notequery.Params{Title: "_"}, nil},
		{"tag exact element", notequery.Params{Tag: "exam"}, []string{"100% Chemistry", "Intro to Biology"}},
		{"file types", notequery.Params{FileTypes: []string{"pdf", "png"}}, []string{"Examples", "100% Chemistry", "Intro to Biology"}},
		{"date range inclusive", notequery.Params{
			From: base.Add(24 * time.Hour).Format(time.RFC3339),
			To:   base.Add(48 * time.Hour).Format(time.RFC3339),
		}, []string{"100% Chemistry", "Chemistry"}},
		{"partial date range ignored", notequery.Params{From: "2030-01-01"}, []string{"Examples", "100% Chemistry", "Chemistry", "Intro to Biology"}},
		{"sort by name asc", notequery.Params{SortField: "file_name", SortOrder: "asc"}, []string{"100% Chemistry", "Chemistry", "Examples", "Intro to Biology"}},
		{"sort by type", notequery.Params{SortField: "file_type", SortOrder: "asc", Title: "chem"}, []string{"Chemistry", "100% Chemistry"}},
	}
	// bob's titles exercise case folding beyond ASCII.
	bobCases := []filterCase{
		{"title folds non-ASCII", notequery.Params{Title: "über"}, []string{"Über Physik"}},
		{"title folds non-ASCII upper", notequery.Params{Title: "ÜBER PH"}, []string{"Über Physik"}},
		{"sort by name ignores case", notequery.Params{SortField: "file_name", SortOrder: "asc"}, []string{"algebra", "Zoology", "Über Physik"}},
	}
	run := func(owner string, cases []filterCase) {
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := db.FindNotes(ctx, notequery.Build(owner, tc.p))
				if err != nil {
					t.Fatalf("FindNotes: %v", err)
				}
				if got == nil {
					t.Fatal("result must not be nil")
				}
				if !equal(names(got), tc.want) {
					t.Errorf("got %v, want %v", names(got), tc.want)
				}
			})
		}
	}
	run("alice", cases)
	run("bob", bobCases)
}

func TestFindNotesLimit(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 5; i++ {
		seed(t, db, "alice", "n", "TXT", nil, base.Add(time.Duration(i)*time.Minute))
	}
	q := notequery.ForOwner("alice")
	q.Limit = 2
	got, err := db.FindNotes(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestFindNotesRejectsUnknownField(t *testing.T) {
	db := testDB(t)
	q := notequery.Query{Terms: []notequery.Term{{Field: "password_hash", Op: notequery.OpEq, Value: "x"}}}
	if _, err := db.FindNotes(context.Background(), q); err == nil {
		t.Fatal("expected error")
	}
}

func TestPing(t *testing.T) {
	if err := testDB(t).Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}
