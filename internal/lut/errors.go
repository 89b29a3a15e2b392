package lut

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTable is returned when a table has no bands to serve.
	ErrEmptyTable = errors.New("lut is empty")
	// ErrInconsistentParameter is returned when bands disagree on a shared parameter.
	ErrInconsistentParameter = errors.New("lut contains different values for a problem parameter")
	// ErrInvalidRange is returned for a malformed band-range restriction.
	ErrInvalidRange = errors.New("invalid lut range")
	// ErrMalformedBand is returned when a band's grid does not match its axes.
	ErrMalformedBand = errors.New("malformed lut band")
	// ErrCorruptBlob is returned when a serialised table cannot be decoded.
	ErrCorruptBlob = errors.New("corrupt lut blob")
	// ErrOutOfRange is returned when a query argument is outside its domain.
	ErrOutOfRange = errors.New("query argument out of range")
	// ErrInternalIndex signals a grid index outside the selected band. It
	// should be unreachable for a well-formed table.
	ErrInternalIndex = errors.New("internal error: grid index out of range")
)

// InconsistentParameterError names the shared parameter on which a band
// disagrees with band 0.
type InconsistentParameterError struct {
	Param string
	Band  int
	Want  float64
	Got   float64
}

func (e *InconsistentParameterError) Error() string {
	return fmt.Sprintf("lut contains different values for problem parameter '%s': band %d has %g, band 0 has %g",
		e.Param, e.Band, e.Got, e.Want)
}

func (e *InconsistentParameterError) Unwrap() error { return ErrInconsistentParameter }

// OutOfRangeError reports a query argument outside [Min, Max].
type OutOfRangeError struct {
	Param string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s = %g is outside of the range [%g, %g]", e.Param, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// InternalIndexError reports which axis produced an out-of-grid index.
type InternalIndexError struct {
	Axis  string // "xi" or "beta"
	Band  int
	Index int
	Len   int
}

func (e *InternalIndexError) Error() string {
	return fmt.Sprintf("internal error: %sIndex %d out of range [0, %d) in band %d", e.Axis, e.Index, e.Len, e.Band)
}

func (e *InternalIndexError) Unwrap() error { return ErrInternalIndex }

// MalformedBandError describes why a band was rejected at load time.
type MalformedBandError struct {
	Band   int
	Reason string
}

func (e *MalformedBandError) Error() string {
	return fmt.Sprintf("malformed lut band %d: %s", e.Band, e.Reason)
}

func (e *MalformedBandError) Unwrap() error { return ErrMalformedBand }
