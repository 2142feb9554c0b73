// Package notequery turns loosely typed search parameters into an explicit
// list of predicate terms and an order. It performs no I/O; the datastore
// compiles a Query into SQL exactly once.
package notequery

import "strings"

// Field names a filterable or sortable column of the notes table.
type Field string

const (
	FieldOwner     Field = "uploaded_by"
	FieldTitle     Field = "file_name"
	FieldTags      Field = "tags"
	FieldCreatedAt Field = "created_at"
	FieldFileType  Field = "file_type"
)

// Op is a predicate operator.
type Op string

const (
	OpEq       Op = "eq"       // Value: string
	OpILike    Op = "ilike"    // Value: string, literal substring
	OpContains Op = "contains" // Value: string, one array element
	OpGte      Op = "gte"      // Value: time.Time
	OpLte      Op = "lte"      // Value: time.Time
	OpIn       Op = "in"       // Value: []string
)

// Term is one conjunctive predicate.
type Term struct {
	Field Field
	Op    Op
	Value any
}

// Order is the database ordering.
type Order struct {
	Field Field
	Desc  bool
}

// Query is the compiled form of a search request.
type Query struct {
	Terms []Term
	Order Order
	// Limit caps the row count; zero means no limit.
	Limit int
	// Rerank holds the title term when results must be re-ranked by
	// relevance after the fetch. RerankReverse flips the ranked sequence.
	Rerank        string
	RerankReverse bool
}

// Sort fields accepted in Params.SortField.
const (
	SortCreatedAt = "created_at"
	SortFileName  = "file_name"
	SortFileType  = "file_type"
	SortRelevance = "relevance"
)

var sortableFields = map[string]Field{
	SortCreatedAt: FieldCreatedAt,
	SortFileName:  FieldTitle,
	SortFileType:  FieldFileType,
}

// ForOwner returns the query listing every note of owner, newest first.
func ForOwner(owner string) Query {
	return Query{
		Terms: []Term{{Field: FieldOwner, Op: OpEq, Value: owner}},
		Order: Order{Field: FieldCreatedAt, Desc: true},
	}
}

// Build translates p into a Query scoped to owner. The owner term is always
// first; optional terms follow in a fixed order: title, tag, date range,
// file types.
func Build(owner string, p Params) Query {
	q := ForOwner(owner)

	title := strings.TrimSpace(p.Title)
	if title != "" {
		q.Terms = append(q.Terms, Term{Field: FieldTitle, Op: OpILike, Value: title})
	}
	if tag := strings.TrimSpace(p.Tag); tag != "" {
		q.Terms = append(q.Terms, Term{Field: FieldTags, Op: OpContains, Value: tag})
	}
	if from, to, ok := p.DateRange(); ok {
		q.Terms = append(q.Terms,
			Term{Field: FieldCreatedAt, Op: OpGte, Value: from},
			Term{Field: FieldCreatedAt, Op: OpLte, Value: to},
		)
	}
	if types := normalizeTypes(p.FileTypes); len(types) > 0 {
		q.Terms = append(q.Terms, Term{Field: FieldFileType, Op: OpIn, Value: types})
	}

	if f, ok := sortableFields[p.SortField]; ok {
		q.Order = Order{Field: f, Desc: p.SortOrder != "asc"}
	}

	if p.SortField == SortRelevance && title != "" {
		q.Rerank = title
		q.RerankReverse = p.SortOrder == "desc"
	}
	return q
}

func normalizeTypes(in []string) []string {
	var out []string
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if t := strings.ToUpper(strings.TrimSpace(part)); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// LikePattern returns a LIKE pattern matching s as a literal substring,
// escaping the wildcard characters with a backslash.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
