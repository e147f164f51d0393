// Package stream produces per-attribute candidates in ascending distance order.
package stream

import (
	"context"

	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
)

// Entry is one sorted-access hit.
type Entry struct {
	ID       string
	Distance float64
	Value    attribute.Value
}

// Stream yields entries with non-decreasing Distance. Next returns false once
// the stream is exhausted; a non-nil error also ends it.
type Stream interface {
	Next(ctx context.Context) (Entry, bool, error)
	Close() error
}

// Slice serves precomputed entries, which must already be sorted.
func Slice(entries []Entry) Stream {
	return &sliceStream{entries: entries}
}

type sliceStream struct {
	entries []Entry
	pos     int
}

func (s *sliceStream) Next(ctx context.Context) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	if s.pos >= len(s.entries) {
		return Entry{}, false, nil
	}
	e := s.entries[s.pos]
	s.pos++
	return e, true, nil
}

func (s *sliceStream) Close() error { return nil }
