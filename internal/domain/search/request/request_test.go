package request

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/simsearch/internal/domain"
	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
	"github.com/kailas-cloud/simsearch/internal/domain/search/mode"
)

func price() attribute.Query {
	return attribute.Query{Name: "price", Kind: attribute.Numerical, Value: "10", Weight: 1}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New([]attribute.Query{price()}, 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode() != mode.Threshold {
		t.Errorf("Mode() = %q, want threshold (default)", r.Mode())
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", r.TopK(), DefaultTopK)
	}
	if len(r.Attributes()) != 1 || r.Attributes()[0].Name != "price" {
		t.Errorf("Attributes() = %v", r.Attributes())
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	r, err := New([]attribute.Query{price()}, 5, mode.NoRandomAccess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mode() != mode.NoRandomAccess {
		t.Errorf("Mode() = %q", r.Mode())
	}
	if r.TopK() != 5 {
		t.Errorf("TopK() = %d", r.TopK())
	}
}

func TestNew_CopiesAttributes(t *testing.T) {
	attrs := []attribute.Query{price()}
	r, err := New(attrs, 1, mode.Sorted)
	if err != nil {
		t.Fatal(err)
	}
	attrs[0].Name = "changed"
	if r.Attributes()[0].Name != "price" {
		t.Fatal("request must not share the caller's slice")
	}
}

func TestNew_Errors(t *testing.T) {
	dup := []attribute.Query{price(), price()}
	tests := []struct {
		name  string
		attrs []attribute.Query
		k     int
		m     mode.Mode
		want  error
	}{
		{"no attributes", nil, 5, mode.Threshold, domain.ErrNoAttributes},
		{"bad mode", []attribute.Query{price()}, 5, "hybrid", domain.ErrInvalidMode},
		{"negative k", []attribute.Query{price()}, -1, mode.Threshold, domain.ErrInvalidTopK},
		{"huge k", []attribute.Query{price()}, MaxTopK + 1, mode.Threshold, domain.ErrInvalidTopK},
		{"duplicate", dup, 5, mode.Threshold, domain.ErrAlreadyExists},
		{"bad weight", []attribute.Query{{Name: "x", Kind: attribute.Numerical, Weight: -2}}, 5, mode.Sorted, domain.ErrInvalidWeight},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.attrs, tc.k, tc.m)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNew_AttributeErrorNamesAttribute(t *testing.T) {
	_, err := New([]attribute.Query{{Name: "loc", Kind: attribute.Spatial, Weight: -1}}, 1, mode.Sorted)
	var ae *domain.AttributeError
	if !errors.As(err, &ae) || ae.Attribute != "loc" {
		t.Fatalf("want AttributeError for loc, got %v", err)
	}
}
