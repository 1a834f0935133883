package mapper

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTableName is returned when a config names no table.
	ErrMissingTableName = errors.New("arbor: config missing table name")

	// ErrMissingHashKey is returned when a key schema names no hash attribute.
	ErrMissingHashKey = errors.New("arbor: key schema missing hash attribute")

	// ErrMissingKeyAttribute is returned when an item lacks an attribute
	// the key schema requires.
	ErrMissingKeyAttribute = errors.New("arbor: item missing key attribute")

	// ErrUnsupportedKeyType is returned when a key attribute is not a
	// string, number or binary value.
	ErrUnsupportedKeyType = errors.New("arbor: key attribute must be S, N or B")
)

// FlushError reports that one or more flush operations failed. It wraps the
// first error encountered; every dispatched operation has settled by the
// time a FlushError is returned.
type FlushError struct {
	// Failures is the number of operations that failed.
	Failures int

	// Err is the first error encountered.
	Err error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("arbor: flush failed (%d of batch): %v", e.Failures, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}
