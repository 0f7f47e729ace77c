// Package errs defines the error kinds surfaced by the report engine and their HTTP mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindOversize
	KindTempMissing
	KindMediaMissing
	KindRenderFailure
	KindTransportFailure
)

var kindNames = map[Kind]string{
	KindInternal:         "internal",
	KindValidation:       "validation",
	KindNotFound:         "not_found",
	KindForbidden:        "forbidden",
	KindConflict:         "conflict",
	KindOversize:         "oversize",
	KindTempMissing:      "temp_missing",
	KindMediaMissing:     "media_missing",
	KindRenderFailure:    "render_failure",
	KindTransportFailure: "transport_failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "unknown"
}

// Status maps a kind onto an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindTempMissing:
		return http.StatusBadRequest
	case KindNotFound, KindMediaMissing:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindOversize:
		return http.StatusRequestEntityTooLarge
	case KindTransportFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind, a user facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, errs.NotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is; they match any error of their kind.
var (
	Validation       = &Error{Kind: KindValidation}
	NotFound         = &Error{Kind: KindNotFound}
	Forbidden        = &Error{Kind: KindForbidden}
	Conflict         = &Error{Kind: KindConflict}
	Oversize         = &Error{Kind: KindOversize}
	TempMissing      = &Error{Kind: KindTempMissing}
	MediaMissing     = &Error{Kind: KindMediaMissing}
	RenderFailure    = &Error{Kind: KindRenderFailure}
	TransportFailure = &Error{Kind: KindTransportFailure}
)

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to cause. A nil cause yields nil.
func Wrap(cause error, kind Kind, format string, args ...any) error {
	if cause == nil {
		return nil
	}

	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// WithDetails returns a copy of e carrying details for the response envelope.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details

	return &cp
}

// KindOf reports the kind of the outermost *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Message returns the user facing message of err. Internal errors are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal error"
		}

		return e.Message
	}

	return "internal error"
}

// DetailsOf returns the details attached to err, if any.
func DetailsOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}

	return nil
}
