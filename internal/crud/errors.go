package crud

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"crudd/internal/orm"
)

// Sentinels wrapped by *Error so callers can test with errors.Is.
var (
	ErrNotImplemented        = errors.New("not implemented")
	ErrActionDisabled        = errors.New("action disabled")
	ErrActionNotConfigured   = errors.New("action not configured")
	ErrMissingAction         = errors.New("missing action")
	ErrListenerNotConfigured = errors.New("listener not configured")
	ErrMissingListener       = errors.New("missing listener")
	ErrMissingView           = errors.New("missing view class")
	ErrMethodNotAllowed      = errors.New("method not allowed")
	ErrValidation            = errors.New("validation failed")
)

// Error is a terminal pipeline condition carrying an HTTP status.
type Error struct {
	Code    int
	Message string

	// Set for validation failures.
	Errors map[string]map[string]string
	Count  int

	kind error
}

// NewError returns an error with the given status and message.
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func (e *Error) Error() string { return e.Message }

// StatusCode implements the HTTP layer's status interface.
func (e *Error) StatusCode() int {
	if e.Code == 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.kind }

// BadRequest returns a 400 error.
func BadRequest(msg string) *Error { return NewError(http.StatusBadRequest, msg) }

// MethodNotAllowed returns a 405 error.
func MethodNotAllowed(msg string) *Error {
	return &Error{Code: http.StatusMethodNotAllowed, Message: msg, kind: ErrMethodNotAllowed}
}

func kindError(kind error, code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), kind: kind}
}

// NewValidationError reports the errors on e. The message counts every
// failed rule across all fields.
func NewValidationError(e *orm.Entity, code int) *Error {
	if code == 0 {
		code = http.StatusUnprocessableEntity
	}
	var errs map[string]map[string]string
	if e != nil {
		errs = e.Errors()
	}
	n := 0
	for _, rules := range errs {
		n += len(rules)
	}
	msg := "A validation error occurred"
	if n != 1 {
		msg = fmt.Sprintf("%d validation errors occurred", n)
	}
	return &Error{Code: code, Message: msg, Errors: errs, Count: n, kind: ErrValidation}
}

// Fields lists the invalid field names in order.
func (e *Error) Fields() []string {
	out := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// StatusCode returns the HTTP status for err, 500 when err carries none.
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err maps to 404.
func IsNotFound(err error) bool { return err != nil && StatusCode(err) == http.StatusNotFound }

// IsBadRequest reports whether err maps to 400.
func IsBadRequest(err error) bool { return err != nil && StatusCode(err) == http.StatusBadRequest }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// responseResult carries a listener-provided response up to Execute.
type responseResult struct{ resp *Response }

func (r *responseResult) Error() string { return "response short-circuit" }
