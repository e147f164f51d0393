package finder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
)

type mockSource struct {
	values map[string]string
	err    error
	calls  int
	last   db.Query
}

func (m *mockSource) FindSingletonValue(_ context.Context, q *db.Query) (string, error) {
	m.calls++
	m.last = *q
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[q.Key]
	if !ok {
		return "", db.ErrKeyNotFound
	}
	return v, nil
}

func newFinder(t *testing.T, kind attribute.Kind, src Source) (*Finder, *ValueCache) {
	t.Helper()
	m, err := attribute.NewMeasure(kind, attribute.Options{})
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	cache := NewValueCache()
	tmpl := db.Query{Table: "hotels", KeyColumn: "id", ValueColumns: []string{"price"}, Limit: 5}
	return New(src, m, tmpl, cache), cache
}

func TestFind(t *testing.T) {
	src := &mockSource{values: map[string]string{"h1": "120.5", "h2": "cheap"}}
	f, cache := newFinder(t, attribute.Numerical, src)
	ctx := context.Background()

	tests := []struct {
		name      string
		id        string
		wantFound bool
		wantValue float64
	}{
		{"found", "h1", true, 120.5},
		{"malformed counts as missing", "h2", false, 0},
		{"absent", "h3", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, found, err := f.Find(ctx, tt.id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found != tt.wantFound || v.Number != tt.wantValue {
				t.Fatalf("got (%v, %v), want (%v, %v)", v.Number, found, tt.wantValue, tt.wantFound)
			}
		})
	}

	if src.last.Key != "h3" || src.last.Table != "hotels" || src.last.Limit != 0 {
		t.Errorf("unexpected query %+v", src.last)
	}
	if cache.Len() != 3 {
		t.Errorf("want 3 cached outcomes, got %d", cache.Len())
	}
}

func TestFind_UsesCache(t *testing.T) {
	src := &mockSource{values: map[string]string{"h1": "1"}}
	f, cache := newFinder(t, attribute.Numerical, src)
	cache.Put("h9", attribute.Value{Number: 9})
	ctx := context.Background()

	for range 3 {
		if _, _, err := f.Find(ctx, "h1"); err != nil {
			t.Fatal(err)
		}
	}
	v, found, err := f.Find(ctx, "h9")
	if err != nil || !found || v.Number != 9 {
		t.Fatalf("want cached 9, got %v %v %v", v, found, err)
	}
	if src.calls != 1 || f.Probes() != 1 {
		t.Fatalf("want 1 probe, got calls=%d probes=%d", src.calls, f.Probes())
	}
}

func TestFind_SourceError(t *testing.T) {
	src := &mockSource{err: &db.Error{Op: db.OpFind, Err: errors.New("timeout")}}
	f, cache := newFinder(t, attribute.Numerical, src)

	_, found, err := f.Find(context.Background(), "h1")
	if err == nil || found {
		t.Fatalf("want error, got found=%v err=%v", found, err)
	}
	if cache.Len() != 0 {
		t.Fatal("source failures must not be cached")
	}
}

func TestFind_Spatial(t *testing.T) {
	src := &mockSource{values: map[string]string{"p": "SRID=4326;POINT(23.7 37.9)", "bad": "POINT(oops)"}}
	f, _ := newFinder(t, attribute.Spatial, src)
	ctx := context.Background()

	v, found, err := f.Find(ctx, "p")
	if err != nil || !found || len(v.Point) != 2 || v.Point[0] != 23.7 {
		t.Fatalf("unexpected %v %v %v", v, found, err)
	}
	if _, found, err := f.Find(ctx, "bad"); err != nil || found {
		t.Fatalf("malformed geometry must be missing, got %v %v", found, err)
	}
}

func TestValueCache_Concurrent(t *testing.T) {
	c := NewValueCache()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("k", attribute.Value{Number: float64(i)})
			c.PutMissing("m")
			c.Get("k")
		}()
	}
	wg.Wait()
	if _, found, ok := c.Get("m"); !ok || found {
		t.Fatal("want cached miss")
	}
	c.PutMissing("k")
	if _, found, _ := c.Get("k"); !found {
		t.Fatal("a miss must not overwrite a resolved value")
	}
}
