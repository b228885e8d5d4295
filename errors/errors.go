// Package errors re-exports github.com/cockroachdb/errors and defines the
// sentinel kinds used across fitscore.
//
// Concrete errors are tagged with a kind using Mark so callers can test
// them with Is:
//
//	err := errors.Mark(errors.Newf("CRPIX%d is not defined", j), errors.ErrFormat)
//	if errors.Is(err, errors.ErrFormat) {
//	    // reject the header
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Mark         = crdb.Mark
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// AssertionFailedf reports a programmer error. Callers panic with it.
var AssertionFailedf = crdb.AssertionFailedf

var (
	// ErrFormat marks malformed data or a missing/invalid header keyword.
	ErrFormat = New("format error")

	// ErrPixelBounds marks a pixel coordinate outside the image.
	ErrPixelBounds = New("pixel out of bounds")

	// ErrParse marks a table row that does not fit its declared schema.
	ErrParse = New("parse error")

	// ErrUnsupported marks input that is valid but not handled.
	ErrUnsupported = New("unsupported")

	// ErrNotFound marks a missing column, HDU or extension.
	ErrNotFound = New("not found")
)

// Formatf returns a new error marked as ErrFormat.
func Formatf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrFormat)
}

// PixelBoundsf returns a new error marked as ErrPixelBounds.
func PixelBoundsf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrPixelBounds)
}

// Unsupportedf returns a new error marked as ErrUnsupported.
func Unsupportedf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrUnsupported)
}

// NotFoundf returns a new error marked as ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}
