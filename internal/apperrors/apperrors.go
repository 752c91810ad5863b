// Package apperrors defines the typed error kinds surfaced across the
// solver's package boundaries: InvalidInput, UnreachableTarget, Numeric,
// Cancelled, and NotReady. Lower-level failures are wrapped with
// github.com/pkg/errors before crossing into a caller-facing kind so the
// original call site survives in %+v output during debugging.
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a caller-facing error per the error handling design.
type Kind int

const (
	// KindInvalidInput covers out-of-range targets, negative weights,
	// unknown or duplicate buff ids.
	KindInvalidInput Kind = iota
	// KindUnreachableTarget covers a lambda-search bracket that never
	// produces a negative value within the hard upper bound.
	KindUnreachableTarget
	// KindNumeric covers NaN/non-finite values surfacing in V_lambda.
	KindNumeric
	// KindCancelled covers a cooperatively aborted compute.
	KindCancelled
	// KindNotReady covers a query against a policy that hasn't been computed.
	KindNotReady
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnreachableTarget:
		return "UnreachableTarget"
	case KindNumeric:
		return "Numeric"
	case KindCancelled:
		return "Cancelled"
	case KindNotReady:
		return "NotReady"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across package boundaries.
// Field carries the offending request field name, if applicable (e.g.
// "targetScore", "buffWeights[crit_rate]").
type Error struct {
	Kind   Kind
	Field  string
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Reason, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, apperrors.NotReadySentinel) against the exported sentinels below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind && other.Field == "" && other.Reason == ""
}

// Sentinels usable with errors.Is for kind-only matching, e.g.
// errors.Is(err, apperrors.NotReadySentinel).
var (
	InvalidInputSentinel      = &Error{Kind: KindInvalidInput}
	UnreachableTargetSentinel = &Error{Kind: KindUnreachableTarget}
	NumericSentinel           = &Error{Kind: KindNumeric}
	CancelledSentinel         = &Error{Kind: KindCancelled}
	NotReadySentinel          = &Error{Kind: KindNotReady}
)

// InvalidInput builds an InvalidInput error naming the offending field.
func InvalidInput(field, reason string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Reason: reason}
}

// UnreachableTarget builds an UnreachableTarget error with a human-readable reason.
func UnreachableTarget(reason string) *Error {
	return &Error{Kind: KindUnreachableTarget, Reason: reason}
}

// Numeric wraps a lower-level numeric failure (NaN/Inf) with call-site context.
func Numeric(cause error, reason string) *Error {
	return &Error{Kind: KindNumeric, Reason: reason, cause: errors.WithStack(cause)}
}

// Cancelled builds a Cancelled error; ctx.Err() is attached as the cause.
func Cancelled(cause error) *Error {
	return &Error{Kind: KindCancelled, Reason: "compute aborted cooperatively", cause: cause}
}

// NotReady builds a NotReady error for a query issued before any compute.
func NotReady(reason string) *Error {
	return &Error{Kind: KindNotReady, Reason: reason}
}

// Wrap attaches call-site context to a lower-level error without changing
// its kind, using the pkg/errors.Wrap idiom for non-apperrors failures
// (e.g. config I/O) before they are classified.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}
