package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/simsearch/internal/db"
)

const scanCount = 100

// ExecuteQuery walks every "<table>:*" hash and reads the value fields.
// Redis keeps no order by value, so q.OrderBy is rejected.
func (s *Store) ExecuteQuery(ctx context.Context, q *db.Query) (db.Rows, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.OrderBy != nil {
		return nil, db.ErrOrderingUnsupported
	}
	if q.Key != "" {
		v, err := s.hmget(ctx, hashKey(q.Table, q.Key), q.ValueColumns)
		if err != nil {
			return nil, err
		}
		return db.SliceRows([]db.Row{{Key: q.Key, Values: v}}), nil
	}
	return &hashRows{s: s, ctx: ctx, q: q, prefix: q.Table + ":"}, nil
}

// FindSingletonValue reads the value fields of one hash.
func (s *Store) FindSingletonValue(ctx context.Context, q *db.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	vals, err := s.hmget(ctx, hashKey(q.Table, q.Key), q.ValueColumns)
	if err != nil {
		return "", err
	}
	v := db.Row{Key: q.Key, Values: vals}.Value()
	if v == "" {
		return "", db.ErrKeyNotFound
	}
	return v, nil
}

func hashKey(table, id string) string {
	if table == "" {
		return id
	}
	return table + ":" + id
}

func (s *Store) hmget(ctx context.Context, key string, fields []string) ([]string, error) {
	cmd := s.b().Hmget().Key(key).Field(fields...).Build()
	return fieldValues(s.do(ctx, cmd), len(fields))
}

// fieldValues converts an HMGET reply; nil fields become "".
func fieldValues(res rueidis.RedisResult, n int) ([]string, error) {
	msgs, err := res.ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpHMGet, Err: err}
	}
	out := make([]string, n)
	for i := 0; i < n && i < len(msgs); i++ {
		if v, err := msgs[i].ToString(); err == nil {
			out[i] = strings.TrimSpace(v)
		}
	}
	return out, nil
}

// hashRows pages through SCAN results, fetching each page's fields in one DoMulti.
type hashRows struct {
	s      *Store
	ctx    context.Context
	q      *db.Query
	prefix string

	cursor  uint64
	started bool
	page    []db.Row
	pos     int
	emitted int
	err     error
}

func (r *hashRows) Next() bool {
	if r.err != nil || (r.q.Limit > 0 && r.emitted >= r.q.Limit) {
		return false
	}
	for r.pos+1 >= len(r.page) {
		if r.started && r.cursor == 0 {
			return false
		}
		if err := r.fetch(); err != nil {
			r.err = err
			return false
		}
	}
	r.pos++
	r.emitted++
	return true
}

func (r *hashRows) fetch() error {
	r.started = true
	cmd := r.s.b().Scan().Cursor(r.cursor).Match(r.prefix + "*").Count(scanCount).Build()
	entry, err := r.s.do(r.ctx, cmd).AsScanEntry()
	if err != nil {
		return &db.Error{Op: db.OpScan, Err: err}
	}
	r.cursor = entry.Cursor
	r.page = r.page[:0]
	r.pos = -1
	if len(entry.Elements) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(entry.Elements))
	for i, key := range entry.Elements {
		cmds[i] = r.s.b().Hmget().Key(key).Field(r.q.ValueColumns...).Build()
	}
	for i, res := range r.s.client.DoMulti(r.ctx, cmds...) {
		vals, err := fieldValues(res, len(r.q.ValueColumns))
		if err != nil {
			return fmt.Errorf("key %s: %w", entry.Elements[i], err)
		}
		r.page = append(r.page, db.Row{Key: strings.TrimPrefix(entry.Elements[i], r.prefix), Values: vals})
	}
	return nil
}

func (r *hashRows) Row() db.Row  { return r.page[r.pos] }
func (r *hashRows) Err() error   { return r.err }
func (r *hashRows) Close() error { return nil }
