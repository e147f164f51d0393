package parquetfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/simsearch/internal/db"
)

type hotel struct {
	ID    string   `parquet:"id"`
	Price float64  `parquet:"price"`
	Stars *int32   `parquet:"stars,optional"`
	Tags  []string `parquet:"tags"`
}

func writeHotels(t *testing.T) string {
	t.Helper()
	four := int32(4)
	path := filepath.Join(t.TempDir(), "hotels.parquet")
	err := parquet.WriteFile(path, []hotel{
		{ID: "h1", Price: 120.5, Stars: &four, Tags: []string{"pool", "spa"}},
		{ID: "h2", Price: 80},
	})
	if err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	return path
}

func TestOpen_FindSingletonValue(t *testing.T) {
	s, err := Open(Config{Path: writeHotels(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("want 2 rows, got %d", s.Len())
	}

	tests := []struct {
		key, column, want string
	}{
		{"h1", "price", "120.5"},
		{"h2", "price", "80"},
		{"h1", "stars", "4"},
		{"h1", "tags", "pool spa"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.column, func(t *testing.T) {
			got, err := s.FindSingletonValue(context.Background(), &db.Query{
				KeyColumn: "id", ValueColumns: []string{tt.column}, Key: tt.key,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_NullIsMissing(t *testing.T) {
	s, err := Open(Config{Path: writeHotels(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = s.FindSingletonValue(context.Background(), &db.Query{
		KeyColumn: "id", ValueColumns: []string{"stars"}, Key: "h2",
	})
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
}

func TestOpen_OrderedQuery(t *testing.T) {
	s, err := Open(Config{Path: writeHotels(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rows, err := s.ExecuteQuery(context.Background(), &db.Query{
		KeyColumn: "id", ValueColumns: []string{"price"},
		OrderBy: &db.Ordering{Column: "price", Target: 100},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		keys = append(keys, rows.Row().Key)
	}
	if len(keys) != 2 || keys[0] != "h2" || keys[1] != "h1" {
		t.Errorf("want [h2 h1], got %v", keys)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(Config{Path: filepath.Join(t.TempDir(), "nope.parquet")})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("want db.Error, got %v", err)
	}
}
