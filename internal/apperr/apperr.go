// Package apperr is the error taxonomy shared by every HTTP handler (spec
// §7). Handlers return or construct an *Error and call Write; the wire
// format is always {"message": "..."} — no error codes, no details map.
package apperr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind classifies an Error for HTTP status mapping. Kept unexported-shaped
// (string) so handlers compare by the constructor, not by poking the kind.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindExpired            Kind = "expired"
	KindLinkClosed         Kind = "link_closed"
	KindInternal           Kind = "internal"
)

// Error is the application-level error type carried through service layers
// up to the HTTP boundary. The Message is user-facing; Cause is logged but
// never serialized.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, message string) *Error { return &Error{Kind: kind, Message: message} }

func NotFound(message string) *Error           { return new_(KindNotFound, message) }
func Unauthenticated(message string) *Error    { return new_(KindUnauthenticated, message) }
func Forbidden(message string) *Error          { return new_(KindForbidden, message) }
func Validation(message string) *Error         { return new_(KindValidation, message) }
func Conflict(message string) *Error           { return new_(KindConflict, message) }
func InvalidCredentials(message string) *Error { return new_(KindInvalidCredentials, message) }
func Expired(message string) *Error            { return new_(KindExpired, message) }
func LinkClosed(message string) *Error         { return new_(KindLinkClosed, message) }

// Internal wraps an unexpected error. Its message is always the generic
// "internal error" — the real cause is logged by the caller, never sent
// over the wire.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Cause: cause}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindExpired:
		return http.StatusGone
	case KindLinkClosed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

type envelope struct {
	Message string `json:"message"`
}

// Write serializes err as the spec's {"message": "..."} envelope with the
// status code matching its Kind. A non-*Error is treated as internal.
func Write(w http.ResponseWriter, err error) {
	ae, ok := err.(*Error)
	if !ok {
		ae = Internal(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(ae.Kind))
	json.NewEncoder(w).Encode(envelope{Message: ae.Message})
}

// As reports whether err (or one it wraps) is an *Error, populating target
// the way errors.As would.
func As(err error, target **Error) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
