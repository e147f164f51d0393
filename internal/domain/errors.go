package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource or attribute value.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNoAttributes signals a search request without attribute queries.
	ErrNoAttributes = errors.New("at least one attribute query is required")
	// ErrUnknownAttribute signals a query against an attribute that is not mounted.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrDimensionMismatch signals a vector whose dimension differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidWeight signals a negative or non-finite attribute weight.
	ErrInvalidWeight = errors.New("invalid weight")
	// ErrInvalidMode signals an unsupported ranking algorithm.
	ErrInvalidMode = errors.New("invalid ranking algorithm")
	// ErrInvalidTopK signals a non-positive or oversized k.
	ErrInvalidTopK = errors.New("invalid top-k")
	// ErrInvalidQueryValue signals a query value that cannot be parsed for its attribute kind.
	ErrInvalidQueryValue = errors.New("invalid query value")

	// ErrMalformedValue signals an attribute value that cannot be parsed.
	ErrMalformedValue = errors.New("malformed value")
	// ErrUnavailable signals a data source that cannot be reached.
	ErrUnavailable = errors.New("source unavailable")
)

// AttributeError ties a configuration error to the attribute that caused it.
type AttributeError struct {
	Attribute string
	Err       error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %q: %s", e.Attribute, e.Err.Error())
}

func (e *AttributeError) Unwrap() error { return e.Err }

// NewAttributeError wraps err with the attribute name.
func NewAttributeError(attribute string, err error) error {
	return &AttributeError{Attribute: attribute, Err: err}
}
