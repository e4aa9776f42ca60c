package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes shared with API consumers.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeAuthorization      = "AUTHORIZATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is the domain error type surfaced to transport layers. Status is the
// suggested HTTP status for the error kind.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

func NewValidationError(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Status: http.StatusBadRequest}
}

func NewAuthenticationError(msg, code string) *Error {
	if code == "" {
		code = CodeAuthentication
	}
	return &Error{Code: code, Message: msg, Status: http.StatusUnauthorized}
}

func NewAuthorizationError(msg string) *Error {
	return &Error{Code: CodeAuthorization, Message: msg, Status: http.StatusForbidden}
}

func NewNotFoundError(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound}
}

func NewConflictError(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg, Status: http.StatusConflict}
}

func NewRateLimitError(msg string) *Error {
	return &Error{Code: CodeRateLimit, Message: msg, Status: http.StatusTooManyRequests}
}

// AsError unwraps err into a domain *Error, or wraps it as an internal error
// with the detail hidden from the caller.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Code: CodeInternal, Message: "internal server error", Status: http.StatusInternalServerError}
}

// Sentinel errors surfaced by the persistence layer. A duplicate-key
// violation is reported without naming the constraint; the store's
// translated error does not carry it, so callers that need to know which
// column collided must probe for themselves.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
)
