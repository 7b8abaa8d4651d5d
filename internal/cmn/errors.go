// Package cmn holds the small set of cross-cutting types every photoindex
// process depends on: typed errors, config loading, and logger construction.
package cmn

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error categories that cross every process
// boundary in the pipeline (REST responses, hub frames, bus dead-lettering).
type Kind string

const (
	KindNotFound   Kind = "NotFound"
	KindConflict   Kind = "Conflict"
	KindValidation Kind = "Validation"
	KindIO         Kind = "Io"
	KindNetwork    Kind = "Network"
	KindDecode     Kind = "Decode"
	KindPolicy     Kind = "Policy"
	KindCancelled  Kind = "Cancelled"
)

// Error is the typed error carried across REST responses, hub frames and
// log records. Construct with the New* helpers rather than building one
// by hand so the Kind/Code pairing stays consistent.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps an error Kind to the status code families used in
// spec.md §6.1.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindPolicy:
		return http.StatusLocked
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newErr(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func NewNotFound(code, msg string) *Error            { return newErr(KindNotFound, code, msg, nil) }
func NewConflict(code, msg string) *Error            { return newErr(KindConflict, code, msg, nil) }
func NewValidation(code, msg string) *Error          { return newErr(KindValidation, code, msg, nil) }
func NewIO(code, msg string, cause error) *Error     { return newErr(KindIO, code, msg, cause) }
func NewNetwork(code, msg string, cause error) *Error {
	return newErr(KindNetwork, code, msg, cause)
}
func NewDecode(code, msg string, cause error) *Error { return newErr(KindDecode, code, msg, cause) }
func NewPolicy(code, msg string) *Error              { return newErr(KindPolicy, code, msg, nil) }
func NewCancelled(code, msg string) *Error           { return newErr(KindCancelled, code, msg, nil) }

// KindOf extracts the Kind from err, defaulting to the zero Kind ("") when
// err does not wrap a *Error. Callers compare against "" to detect
// "not one of ours".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
