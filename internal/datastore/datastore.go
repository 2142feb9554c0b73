// Package datastore persists notes, users and password-reset tokens in
// SQLite or PostgreSQL. Schema changes are embedded goose migrations.
package datastore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"

	"github.com/starford/studynotes/internal/apperr"
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// sqliteTime is fixed width so that TEXT comparison is chronological.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

//go:embed migrations
var migrations embed.FS

var tracer = otel.Tracer("studynotes/datastore")

// sqliteDriver is go-sqlite3 with fold(x), a Unicode lower-casing function.
// SQLite's own LIKE and lower() only fold ASCII.
const sqliteDriver = "sqlite3_fold"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			return c.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// DB wraps a sql.DB with note and account operations.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch dialect {
	case DialectSQLite:
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		conn, err = sql.Open(sqliteDriver, dsn+sep+"_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	case DialectPostgres:
		conn, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("datastore: unknown dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("datastore: ping: %w", err)
	}

	db := New(conn, dialect)
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an existing connection without running migrations.
func New(conn *sql.DB, dialect Dialect) *DB {
	return &DB{conn: conn, dialect: dialect}
}

// Migrate applies every pending migration for the dialect.
func (db *DB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations/"+string(db.dialect))
	if err != nil {
		return fmt.Errorf("datastore: migrations: %w", err)
	}
	gd := goose.DialectSQLite3
	if db.dialect == DialectPostgres {
		gd = goose.DialectPostgres
	}
	p, err := goose.NewProvider(gd, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("datastore: migration provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("datastore: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperr.Upstream("ping database", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) timeArg(t time.Time) any {
	if db.dialect == DialectSQLite {
		return t.UTC().Format(sqliteTime)
	}
	return t.UTC()
}

// fail converts a driver error into an UpstreamError carrying the driver's
// error code.
func fail(op string, err error) error {
	ue := &apperr.UpstreamError{Op: op, Err: err}
	var pgErr *pgconn.PgError
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pgErr):
		ue.Code = pgErr.Code
	case errors.As(err, &liteErr):
		ue.Code = strconv.Itoa(int(liteErr.ExtendedCode))
	}
	return ue
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// timeColumn scans TIMESTAMPTZ values and SQLite TEXT timestamps alike.
type timeColumn struct{ t *time.Time }

func (c timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*c.t = v.UTC()
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	case nil:
		*c.t = time.Time{}
		return nil
	}
	return fmt.Errorf("datastore: cannot scan %T into time", src)
}

func (c timeColumn) parse(s string) error {
	for _, layout := range []string{sqliteTime, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*c.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("datastore: bad timestamp %q", s)
}

// tagsColumn scans a JSON array column; the result is never nil.
type tagsColumn struct{ tags *[]string }

func (c tagsColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
	default:
		return fmt.Errorf("datastore: cannot scan %T into tags", src)
	}
	out := []string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("datastore: decode tags: %w", err)
		}
	}
	if out == nil {
		out = []string{}
	}
	*c.tags = out
	return nil
}

func tagsArg(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}
