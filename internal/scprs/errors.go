package scprs

import "fmt"

// TransientError marks a network or portal-side failure. A pull hitting one
// of these is not retried within the cycle; the next scheduled cycle tries
// again.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("scprs %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// DataShapeError marks a scraped record that is missing or mangling a field
// we require. The record is skipped and logged; ingestion continues.
type DataShapeError struct {
	Field  string
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("malformed record: %s %s", e.Field, e.Reason)
}
