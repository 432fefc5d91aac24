// Package errors defines the failures the manager controllers return to the
// HTTP layer. Every failure carries a kind, a lexicon key and, once localized,
// a human-readable message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindLocked       Kind = "locked"
	KindInternal     Kind = "internal"
)

// Lexicon keys of the default messages, resolved against the chunk and
// default topics.
const (
	KeyChunkNotSpecified = "chunk_err_ns"
	KeyChunkNotFound     = "chunk_err_nfs"
	KeyChunkLocked       = "chunk_err_locked"
	KeyAccessDenied      = "access_denied"
	KeyInternal          = "error"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrLocked       = &Error{Kind: KindLocked}
	ErrInternal     = &Error{Kind: KindInternal}
)

// Translator resolves a lexicon key with placeholder params.
type Translator interface {
	Get(key string, params map[string]string) string
}

// Error is a terminal, tagged failure.
type Error struct {
	Kind    Kind
	Key     string
	Params  map[string]string
	Message string
	cause   error
}

// Error returns the localized message when present, otherwise a fallback
// built from the kind, key and params.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	msg := string(e.Kind)
	if e.Key != "" {
		msg += ": " + e.Key
	}
	if id, ok := e.Params["id"]; ok {
		msg += " (id=" + id + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause of internal failures.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Key == "" || t.Key == e.Key)
}

// HTTPStatus maps the failure kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAccessDenied:
		return http.StatusForbidden
	case KindLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// Localize fills Message from the translator and returns e.
func (e *Error) Localize(t Translator) *Error {
	if t != nil && e.Key != "" {
		e.Message = t.Get(e.Key, e.Params)
	}
	return e
}

// Validation reports missing or malformed input.
func Validation(key string) *Error {
	return &Error{Kind: KindValidation, Key: key}
}

// NotFound reports an absent record.
func NotFound(key, id string) *Error {
	return &Error{Kind: KindNotFound, Key: key, Params: map[string]string{"id": id}}
}

// AccessDenied reports a failed policy or permission check.
func AccessDenied() *Error {
	return &Error{Kind: KindAccessDenied, Key: KeyAccessDenied}
}

// Locked reports a locked record the actor may not edit.
func Locked(key string) *Error {
	return &Error{Kind: KindLocked, Key: key}
}

// Internal wraps an unexpected collaborator failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Key: KeyInternal, cause: cause}
}

// Internalf is Internal with a formatted cause.
func Internalf(format string, args ...any) *Error {
	return Internal(fmt.Errorf(format, args...))
}

// As extracts the *Error from err. Errors that are not *Error come back as an
// internal failure wrapping err.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
