// Package errs implements the error taxonomy shared by every stage of the
// shape-reconstruction pipeline. It replaces exceptions-for-control-flow in
// the estimation loops with a discriminated result that callers can
// pattern-match on.
package errs

import (
	"errors"
	"fmt"

	"github.com/cpmech/gosl/io"
)

// Kind classifies an error without naming a specific failing component.
type Kind int

const (
	// InputMalformed marks a non-triangular mesh, a negative radius, an
	// unsupported Bézier degree, or any other structurally invalid input.
	InputMalformed Kind = iota
	// NumericSingular marks a Cholesky or normal-equation inversion failure.
	NumericSingular
	// ConvergenceFailed marks an ICP or batch estimator that exceeded its
	// iteration cap without meeting tolerance.
	ConvergenceFailed
	// NoCorrespondences marks an ICP pass that found too few valid pairs.
	NoCorrespondences
	// OutOfDomain marks a ray that missed every patch during uncertainty
	// validation; fatal in the validator, non-fatal in a normal ray trace.
	OutOfDomain
	// Cancelled marks a cooperative abort via context.Context.
	Cancelled
	// IOError marks a missing file or a short read.
	IOError
)

func (k Kind) String() string {
	switch k {
	case InputMalformed:
		return "InputMalformed"
	case NumericSingular:
		return "NumericSingular"
	case ConvergenceFailed:
		return "ConvergenceFailed"
	case NoCorrespondences:
		return "NoCorrespondences"
	case OutOfDomain:
		return "OutOfDomain"
	case Cancelled:
		return "Cancelled"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind must abort the whole pipeline
// run (spec §7: InputMalformed and IOError are fatal; everything else is
// recoverable by the component that raised it).
func (k Kind) Fatal() bool {
	return k == InputMalformed || k == IOError
}

// Error is the concrete error type returned by every package in this
// module. It never panics for a domain-level failure; it is always
// returned and always pattern-matchable via Is.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return io.Sf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return io.Sf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with a formatted message, following the teacher's
// chk.Err(fmt, args...) message-formatting idiom.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: io.Sf(format, args...)}
}

// Wrap attaches a kind to an existing error without discarding it.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: io.Sf(format, args...), Cause: cause}
}

// Is reports whether the first *Error in err's chain (err itself or the
// outermost *Error it wraps) has kind k; the kinds of *Errors nested
// inside that one are not compared.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err is not one
// of ours.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Diagnostic renders the single-line, user-visible diagnostic for a
// recoverable error, per spec §7 "a single diagnostic line per recoverable
// event".
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("! %v", err)
}
