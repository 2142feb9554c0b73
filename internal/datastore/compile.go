package datastore

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/studynotes/internal/notequery"
)

var columns = map[notequery.Field]string{
	notequery.FieldOwner:     "uploaded_by",
	notequery.FieldTitle:     "file_name",
	notequery.FieldTags:      "tags",
	notequery.FieldCreatedAt: "created_at",
	notequery.FieldFileType:  "file_type",
}

const noteColumns = `id, file_name, file_description, tags, file_url, file_type, uploaded_by, created_at`

// compile renders q as a SELECT over notes. Column names come from a fixed
// table; every value is a bound argument.
func (db *DB) compile(q notequery.Query) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	for _, t := range q.Terms {
		col, ok := columns[t.Field]
		if !ok {
			return "", nil, fmt.Errorf("datastore: unknown field %q", t.Field)
		}
		clause, termArgs, err := db.term(col, t)
		if err != nil {
			return "", nil, err
		}
		where = append(where, clause)
		args = append(args, termArgs...)
	}

	var b strings.Builder
	b.WriteString("SELECT " + noteColumns + " FROM notes")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	orderCol, ok := columns[q.Order.Field]
	if !ok || q.Order.Field == notequery.FieldTags || q.Order.Field == notequery.FieldOwner {
		orderCol = "created_at"
	}
	dir := "ASC"
	if q.Order.Desc {
		dir = "DESC"
	}
	if orderCol == "file_name" && db.dialect == DialectSQLite {
		orderCol += " COLLATE NOCASE"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s, id ASC", orderCol, dir)

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return db.rebind(b.String()), args, nil
}

func (db *DB) term(col string, t notequery.Term) (string, []any, error) {
	switch t.Op {
	case notequery.OpEq:
		s, err := stringValue(t)
		return col + " = ?", []any{s}, err

	case notequery.OpILike:
		s, err := stringValue(t)
		if db.dialect == DialectPostgres {
			return col + ` ILIKE ? ESCAPE '\'`, []any{notequery.LikePattern(s)}, err
		}
		return "fold(" + col + `) LIKE ? ESCAPE '\'`, []any{notequery.LikePattern(strings.ToLower(s))}, err

	case notequery.OpContains:
		s, err := stringValue(t)
		if db.dialect == DialectPostgres {
			return col + " @> ?::jsonb", []any{tagsArg([]string{s})}, err
		}
		return "EXISTS (SELECT 1 FROM json_each(notes." + col + ") WHERE json_each.value = ?)", []any{s}, err

	case notequery.OpGte, notequery.OpLte:
		v, ok := t.Value.(time.Time)
		if !ok {
			return "", nil, fmt.Errorf("datastore: %s %s wants time.Time, got %T", t.Field, t.Op, t.Value)
		}
		cmp := ">="
		if t.Op == notequery.OpLte {
			cmp = "<="
		}
		return col + " " + cmp + " ?", []any{db.timeArg(v)}, nil

	case notequery.OpIn:
		vs, ok := t.Value.([]string)
		if !ok {
			return "", nil, fmt.Errorf("datastore: %s in wants []string, got %T", t.Field, t.Value)
		}
		if len(vs) == 0 {
			return "1 = 0", nil, nil
		}
		args := make([]any, len(vs))
		for i, v := range vs {
			args[i] = v
		}
		return col + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(vs)), ", ") + ")", args, nil
	}
	return "", nil, fmt.Errorf("datastore: unknown operator %q", t.Op)
}

func stringValue(t notequery.Term) (string, error) {
	s, ok := t.Value.(string)
	if !ok {
		return "", fmt.Errorf("datastore: %s %s wants string, got %T", t.Field, t.Op, t.Value)
	}
	return s, nil
}
