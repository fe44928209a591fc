package schema

import "fmt"

// Error taxonomy exposed to clients.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAuthentication = "authentication_error"
	ErrTypeAPI            = "api_error"
	ErrTypeInternal       = "internal_error"
	ErrTypeUnknown        = "unknown_error"
)

// Distinct error codes.
const (
	CodeModelNotFound = "model_not_found"
	CodeMissingAPIKey = "missing_api_key"
)

// Error is the unified error body. Status carries the HTTP status to
// respond with and is never serialized.
type Error struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
	Status  int         `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the wire shape for every error path: {"error": {...}}.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

func NewError(status int, errType, message string) *Error {
	return &Error{Message: message, Type: errType, Status: status}
}

func NewErrorWithCode(status int, errType, code, message string) *Error {
	return &Error{Message: message, Type: errType, Code: code, Status: status}
}
