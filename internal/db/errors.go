package db

import "errors"

// Sentinel errors for data source operations.
var (
	ErrKeyNotFound         = errors.New("db: key not found")
	ErrOrderingUnsupported = errors.New("db: source cannot order by distance")
	ErrInvalidIdentifier   = errors.New("db: invalid table or column name")
)

// Op names for error context.
const (
	OpConnect = "CONNECT"
	OpQuery   = "QUERY"
	OpFind    = "FIND"
	OpPing    = "PING"
	OpHMGet   = "HMGET"
	OpScan    = "SCAN"
	OpGet     = "GET"
	OpSet     = "SET"
	OpRead    = "READ"
	OpRemote  = "HTTP"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
