// Package apperr defines the typed error taxonomy shared by every layer of
// the clinical RAG service: Input/Configuration/DependencyUnavailable/
// Data/Internal. Handlers switch on kind with errors.As, never on string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy discriminant.
type Kind string

const (
	// KindInput covers bad or empty queries, unknown ids — caller mistakes.
	KindInput Kind = "input"
	// KindConfiguration covers missing env vars or config files — fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindDependencyUnavailable covers embedding/FHIR/DB/LLM outages — retried, then downgraded.
	KindDependencyUnavailable Kind = "dependency_unavailable"
	// KindData covers malformed records (bad DICOM, dimension mismatch) — logged, single-record scope.
	KindData Kind = "data"
	// KindInternal covers anything unexpected — never crashes the request.
	KindInternal Kind = "internal"
)

// Error is the concrete typed error. Callers use errors.As with a
// *apperr.Error target, or the KindOf/Is helpers below.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Input(format string, args ...any) *Error                 { return newf(KindInput, format, args...) }
func Configuration(format string, args ...any) *Error          { return newf(KindConfiguration, format, args...) }
func DependencyUnavailable(format string, args ...any) *Error  { return newf(KindDependencyUnavailable, format, args...) }
func Data(format string, args ...any) *Error                   { return newf(KindData, format, args...) }
func Internal(format string, args ...any) *Error               { return newf(KindInternal, format, args...) }

func WrapInput(err error, format string, args ...any) *Error { return wrapf(KindInput, err, format, args...) }
func WrapConfiguration(err error, format string, args ...any) *Error {
	return wrapf(KindConfiguration, err, format, args...)
}
func WrapDependencyUnavailable(err error, format string, args ...any) *Error {
	return wrapf(KindDependencyUnavailable, err, format, args...)
}
func WrapData(err error, format string, args ...any) *Error { return wrapf(KindData, err, format, args...) }
func WrapInternal(err error, format string, args ...any) *Error {
	return wrapf(KindInternal, err, format, args...)
}

// KindOf extracts the taxonomy kind from err, defaulting to KindInternal for
// errors that never went through this package (e.g. a bare driver error).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }
