// Package csvfile serves attribute values from a delimited text file with a header row.
// The file is read once into memory; keys are the values of the key column.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kailas-cloud/simsearch/internal/db"
)

// Compile-time check: Store implements db.Connector.
var _ db.Connector = (*Store)(nil)

// Config holds file source settings.
type Config struct {
	Path string
	// Delimiter defaults to ','.
	Delimiter rune
}

// Store implements db.Connector over an in-memory copy of the file.
type Store struct {
	path    string
	columns map[string]int
	records [][]string

	mu    sync.Mutex
	byKey map[int]map[string]int // key column position -> key -> record index
}

// Open reads the file at cfg.Path.
func Open(cfg Config) (*Store, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, &db.Error{Op: db.OpRead, Err: err}
	}
	defer func() { _ = f.Close() }()

	s, err := Read(f, cfg.Delimiter)
	if err != nil {
		return nil, err
	}
	s.path = cfg.Path
	return s, nil
}

// Read loads delimited text from r. The first row names the columns.
func Read(r io.Reader, delimiter rune) (*Store, error) {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = 0
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &db.Error{Op: db.OpRead, Err: errors.New("empty file")}
		}
		return nil, &db.Error{Op: db.OpRead, Err: err}
	}
	s := &Store{columns: make(map[string]int, len(header)), byKey: map[int]map[string]int{}}
	for i, h := range header {
		s.columns[strings.TrimSpace(h)] = i
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &db.Error{Op: db.OpRead, Err: err}
		}
		s.records = append(s.records, rec)
	}
	return s, nil
}

// FromRecords builds a store from rows already decoded by another file format.
// path is only used by Ping.
func FromRecords(path string, header []string, records [][]string) *Store {
	s := &Store{path: path, columns: make(map[string]int, len(header)), byKey: map[int]map[string]int{}}
	for i, h := range header {
		s.columns[strings.TrimSpace(h)] = i
	}
	s.records = records
	return s
}

// Ping checks that the file is still readable.
func (s *Store) Ping(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close is a no-op; the file is closed after loading.
func (s *Store) Close() error { return nil }

// Len returns the number of data rows.
func (s *Store) Len() int { return len(s.records) }

// ExecuteQuery returns matching rows in file order, or by ascending distance
// to q.OrderBy.Target when set (rows with a non-numeric order column are skipped).
func (s *Store) ExecuteQuery(ctx context.Context, q *db.Query) (db.Rows, error) {
	idx, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	if q.Key != "" {
		i, ok := s.index(idx[0])[q.Key]
		if !ok {
			return db.SliceRows(nil), nil
		}
		return db.SliceRows([]db.Row{s.row(i, idx)}), nil
	}

	rows := make([]db.Row, 0, len(s.records))
	if q.OrderBy == nil {
		for i := range s.records {
			rows = append(rows, s.row(i, idx))
		}
	} else {
		col, ok := s.columns[q.OrderBy.Column]
		if !ok {
			return nil, fmt.Errorf("column %q: %w", q.OrderBy.Column, db.ErrInvalidIdentifier)
		}
		type keyed struct {
			row  db.Row
			dist float64
		}
		ordered := make([]keyed, 0, len(s.records))
		for i, rec := range s.records {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				continue
			}
			ordered = append(ordered, keyed{row: s.row(i, idx), dist: math.Abs(f - q.OrderBy.Target)})
		}
		sort.SliceStable(ordered, func(a, b int) bool {
			if ordered[a].dist != ordered[b].dist {
				return ordered[a].dist < ordered[b].dist
			}
			return ordered[a].row.Key < ordered[b].row.Key
		})
		for _, k := range ordered {
			rows = append(rows, k.row)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return db.SliceRows(rows), nil
}

// FindSingletonValue returns the joined value columns for q.Key.
func (s *Store) FindSingletonValue(_ context.Context, q *db.Query) (string, error) {
	idx, err := s.resolve(q)
	if err != nil {
		return "", err
	}
	i, ok := s.index(idx[0])[q.Key]
	if !ok {
		return "", db.ErrKeyNotFound
	}
	v := s.row(i, idx).Value()
	if v == "" {
		return "", db.ErrKeyNotFound
	}
	return v, nil
}

// resolve maps the key and value columns to record positions.
func (s *Store) resolve(q *db.Query) ([]int, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	cols := q.Columns()
	idx := make([]int, len(cols))
	for i, c := range cols {
		p, ok := s.columns[c]
		if !ok {
			return nil, fmt.Errorf("column %q: %w", c, db.ErrInvalidIdentifier)
		}
		idx[i] = p
	}
	return idx, nil
}

// index returns the key lookup for a key column, building it on first use.
func (s *Store) index(keyCol int) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byKey[keyCol]; ok {
		return m
	}
	m := make(map[string]int, len(s.records))
	for i, rec := range s.records {
		m[strings.TrimSpace(rec[keyCol])] = i
	}
	s.byKey[keyCol] = m
	return m
}

func (s *Store) row(i int, idx []int) db.Row {
	rec := s.records[i]
	r := db.Row{Key: strings.TrimSpace(rec[idx[0]]), Values: make([]string, len(idx)-1)}
	for j, p := range idx[1:] {
		r.Values[j] = strings.TrimSpace(rec[p])
	}
	return r
}
