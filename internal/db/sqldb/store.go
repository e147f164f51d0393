// Package sqldb reads attribute values from a SQL database through database/sql.
// The pure-Go SQLite driver is registered; any other registered driver works too.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/kailas-cloud/simsearch/internal/db"
)

// Compile-time check: Store implements db.Connector.
var _ db.Connector = (*Store)(nil)

// DefaultDriver is the modernc.org/sqlite driver name.
const DefaultDriver = "sqlite"

// Config holds connection parameters for a SQL store.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Store implements db.Connector over a *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore opens a database handle. The connection is established lazily; call Ping to verify it.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DefaultDriver
	}
	h, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		h.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	h.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: h}, nil
}

// NewStoreFromDB wraps an existing handle.
func NewStoreFromDB(h *sql.DB) *Store {
	return &Store{db: h}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// ExecuteQuery selects key and value columns. With q.OrderBy set, rows with a
// NULL order column are skipped and the rest arrive by ascending |column - target|.
func (s *Store) ExecuteQuery(ctx context.Context, q *db.Query) (db.Rows, error) {
	text, args, err := selectSQL(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return &sqlRows{rows: rows, width: len(q.ValueColumns)}, nil
}

// FindSingletonValue returns the joined value columns of q.Key.
func (s *Store) FindSingletonValue(ctx context.Context, q *db.Query) (string, error) {
	if q.Key == "" {
		return "", fmt.Errorf("key is required: %w", db.ErrKeyNotFound)
	}
	single := *q
	single.OrderBy = nil
	single.Limit = 1

	rows, err := s.ExecuteQuery(ctx, &single)
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", db.ErrKeyNotFound
	}
	v := rows.Row().Value()
	if v == "" {
		return "", db.ErrKeyNotFound
	}
	return v, nil
}

func selectSQL(q *db.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.Table == "" {
		return "", nil, fmt.Errorf("table is required: %w", db.ErrInvalidIdentifier)
	}

	cols := q.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}

	var b strings.Builder
	var args []any
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(q.Table))

	switch {
	case q.Key != "":
		b.WriteString(" WHERE ")
		b.WriteString(quoteIdent(q.KeyColumn))
		b.WriteString(" = ?")
		args = append(args, q.Key)
	case q.OrderBy != nil:
		col := quoteIdent(q.OrderBy.Column)
		fmt.Fprintf(&b, " WHERE %s IS NOT NULL ORDER BY ABS(%s - ?), %s", col, col, quoteIdent(q.KeyColumn))
		args = append(args, q.OrderBy.Target)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

// quoteIdent quotes each dot-separated part of a validated identifier.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

type sqlRows struct {
	rows  *sql.Rows
	width int
	cur   db.Row
	err   error
}

func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	vals := make([]sql.NullString, r.width+1)
	dest := make([]any, len(vals))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.err = &db.Error{Op: db.OpQuery, Err: err}
		return false
	}
	row := db.Row{Key: vals[0].String, Values: make([]string, r.width)}
	for i := range row.Values {
		row.Values[i] = strings.TrimSpace(vals[i+1].String)
	}
	r.cur = row
	return true
}

func (r *sqlRows) Row() db.Row { return r.cur }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	if err := r.rows.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	return nil
}

func (r *sqlRows) Close() error {
	if err := r.rows.Close(); err != nil {
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	return nil
}
