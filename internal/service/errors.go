package service

import (
	"errors"
	"fmt"
)

// DataLoadError is an initial parcel or vocabulary fetch failure. It is fatal
// to the map view and is not retried automatically.
type DataLoadError struct {
	Op  string
	Err error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("data load: %s: %v", e.Op, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// UpdateError is a failed remote zoning update. The selection survives so the
// operator can retry.
type UpdateError struct {
	Count      int
	ZoningType string
	Err        error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update zoning of %d parcels to %q: %v", e.Count, e.ZoningType, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// StatsFetchError is a statistics fetch or simulation failure. It is logged
// and leaves the stats panel empty or stale.
type StatsFetchError struct {
	Op  string
	Err error
}

func (e *StatsFetchError) Error() string {
	return fmt.Sprintf("stats: %s: %v", e.Op, e.Err)
}

func (e *StatsFetchError) Unwrap() error {
	return e.Err
}

// IsDataLoad reports whether err is, or wraps, a DataLoadError.
func IsDataLoad(err error) bool {
	var e *DataLoadError
	return errors.As(err, &e)
}

// IsUpdate reports whether err is, or wraps, an UpdateError.
func IsUpdate(err error) bool {
	var e *UpdateError
	return errors.As(err, &e)
}

// IsStatsFetch reports whether err is, or wraps, a StatsFetchError.
func IsStatsFetch(err error) bool {
	var e *StatsFetchError
	return errors.As(err, &e)
}
