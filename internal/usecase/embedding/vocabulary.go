package embedding

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Vocabulary resolves a lower-cased token to its vector.
type Vocabulary interface {
	Lookup(ctx context.Context, token string) ([]float64, bool)
}

// MapVocabulary is an in-memory dictionary.
type MapVocabulary map[string][]float64

// Lookup implements Vocabulary.
func (m MapVocabulary) Lookup(_ context.Context, token string) ([]float64, bool) {
	v, ok := m[token]
	return v, ok
}

// LoadDictionary reads a delimited file where each row is a token followed by
// its vector components. Tokens are lower-cased. It returns the dictionary and
// its dimension; rows whose length disagrees with the first row are rejected.
func LoadDictionary(r io.Reader, comma rune, header bool) (MapVocabulary, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	dict := make(MapVocabulary)
	dim := 0
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read dictionary line %d: %w", line, err)
		}
		if header && line == 1 {
			continue
		}
		if len(rec) < 2 {
			return nil, 0, fmt.Errorf("dictionary line %d: no vector", line)
		}
		if dim == 0 {
			dim = len(rec) - 1
		} else if len(rec)-1 != dim {
			return nil, 0, fmt.Errorf("dictionary line %d: %d components, want %d", line, len(rec)-1, dim)
		}
		vec := make([]float64, dim)
		for i, s := range rec[1:] {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, 0, fmt.Errorf("dictionary line %d component %d: %w", line, i, err)
			}
			vec[i] = f
		}
		dict[strings.ToLower(strings.TrimSpace(rec[0]))] = vec
	}
	return dict, dim, nil
}
