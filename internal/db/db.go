// Package db defines the narrow data-source contract the search core reads
// attribute values through. Backends live in subpackages.
package db

import (
	"context"
	"strings"
	"time"
)

// Pinger checks data source connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connector is a data source holding one or more attribute columns keyed by entity identifier.
type Connector interface {
	Pinger
	// ExecuteQuery returns a cursor over the rows matching q. The caller must Close it.
	ExecuteQuery(ctx context.Context, q *Query) (Rows, error)
	// FindSingletonValue returns the value of q.Key, or ErrKeyNotFound.
	FindSingletonValue(ctx context.Context, q *Query) (string, error)
	Close() error
}

// KVStore is a byte-valued key-value store with optional expiry.
type KVStore interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores without expiry when ttl <= 0.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Query describes a read of one attribute from a source.
type Query struct {
	// Table is the SQL table, Redis key prefix, or REST collection.
	Table     string
	KeyColumn string
	// ValueColumns holds one column, or several for composite values such as lon/lat.
	ValueColumns []string
	// Key restricts the read to one entity.
	Key string
	// OrderBy asks the source to order rows by distance to a numeric target.
	OrderBy *Ordering
	// Limit caps the number of rows; 0 means unlimited.
	Limit int
}

// Ordering sorts rows by ascending |column - Target|.
type Ordering struct {
	Column string
	Target float64
}

// Row is one entity's value columns, aligned with Query.ValueColumns.
// A NULL or absent column is the empty string.
type Row struct {
	Key    string
	Values []string
}

// Value joins the columns with "," so composite values parse as coordinate lists.
// It returns "" when any column is missing.
func (r Row) Value() string {
	for _, v := range r.Values {
		if v == "" {
			return ""
		}
	}
	return strings.Join(r.Values, ",")
}

// Rows is a forward-only cursor.
type Rows interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// SliceRows serves already materialized rows.
func SliceRows(rows []Row) Rows {
	return &sliceRows{rows: rows, i: -1}
}

type sliceRows struct {
	rows []Row
	i    int
}

func (s *sliceRows) Next() bool {
	if s.i+1 >= len(s.rows) {
		s.i = len(s.rows)
		return false
	}
	s.i++
	return true
}

func (s *sliceRows) Row() Row     { return s.rows[s.i] }
func (s *sliceRows) Err() error   { return nil }
func (s *sliceRows) Close() error { return nil }
