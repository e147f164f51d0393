package db

import (
	"fmt"
	"regexp"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Validate checks that every table and column name is a plain identifier, so
// backends can splice them into query text. Table may be empty for file sources.
func (q *Query) Validate() error {
	if q.KeyColumn == "" || len(q.ValueColumns) == 0 {
		return fmt.Errorf("key column and at least one value column are required: %w", ErrInvalidIdentifier)
	}
	names := q.Columns()
	if q.Table != "" {
		names = append(names, q.Table)
	}
	if q.OrderBy != nil {
		names = append(names, q.OrderBy.Column)
	}
	for _, n := range names {
		if !identifierRe.MatchString(n) {
			return fmt.Errorf("%q: %w", n, ErrInvalidIdentifier)
		}
	}
	return nil
}

// Columns returns the key column followed by the value columns.
func (q *Query) Columns() []string {
	return append([]string{q.KeyColumn}, q.ValueColumns...)
}
