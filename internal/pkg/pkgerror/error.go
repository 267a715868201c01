package pkgerror

import (
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is the non-standard status recorded when the
// client goes away before the upload is read completely.
const StatusClientClosedRequest = 499

// Type classifies errors by who has to act on them.
type Type int

const (
	TypeServer     Type = iota // The service failed (disk, encoding); logged, detail hidden.
	TypeValidation             // The request is unusable as sent.
	TypeClient                 // The client abandoned the request.
)

func (t Type) String() string {
	switch t {
	case TypeValidation:
		return "ERROR_TYPE_VALIDATION"
	case TypeClient:
		return "ERROR_TYPE_CLIENT"
	case TypeServer:
		return "ERROR_TYPE_SERVER"
	default:
		return "ERROR_TYPE_UNKNOWN"
	}
}

// Code is a stable identifier used for mapping errors to HTTP status codes.
type Code int

const (
	CodeInternal      Code = iota // Internal or unspecified error.
	CodeInvalidFormat             // Request carries no usable file.
	CodeTooLarge                  // Payload over the accepted size.
	CodeCanceled                  // Client canceled the request.
)

func (c Code) String() string {
	switch c {
	case CodeInvalidFormat:
		return "ERROR_CODE_INVALID_FORMAT"
	case CodeTooLarge:
		return "ERROR_CODE_TOO_LARGE"
	case CodeCanceled:
		return "ERROR_CODE_CANCELED"
	default:
		return "ERROR_CODE_INTERNAL"
	}
}

// Error is a structured error used across the application.
//
// It wraps the underlying cause while carrying the message shown to the
// caller, a Type and a Code.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}

	if e.msg != "" {
		return e.msg
	}

	switch e.errType {
	case TypeValidation:
		return "Validation violation"
	case TypeClient:
		return "Request canceled"
	case TypeServer:
		return "Internal error"
	default:
		return "Unknown error"
	}
}

// String returns a verbose representation of the error for logging.
func (e *Error) String() string {
	return fmt.Sprintf(
		"Error Type: %s, Code: %s, Message: %s, Underlying Error: %v",
		e.errType.String(),
		e.code.String(),
		e.msg,
		e.err,
	)
}

// Msg returns the user-facing error message, if set.
func (e *Error) Msg() string {
	return e.msg
}

func (e *Error) Type() Type {
	return e.errType
}

func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// StatusCode maps the error code to an HTTP status code.
func (e *Error) StatusCode() int {
	switch e.code {
	case CodeInvalidFormat:
		return http.StatusBadRequest
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func new(err error, msg string, et Type, code Code) error {
	return &Error{err: err, msg: msg, errType: et, code: code}
}

// NewServer wraps err as an internal failure. Callers only ever see
// "Internal server error".
func NewServer(err error) error {
	return new(err, "Internal server error", TypeServer, CodeInternal)
}

// NewValidation creates a validation error whose message is shown to the caller as-is.
func NewValidation(msg string, code Code) error {
	return new(nil, msg, TypeValidation, code)
}

// NewTooLarge creates a validation error for a payload above the configured limit.
func NewTooLarge(err error) error {
	return new(err, "File too large", TypeValidation, CodeTooLarge)
}

// NewCanceled records that the client went away mid-request.
func NewCanceled(err error) error {
	return new(err, "Request canceled", TypeClient, CodeCanceled)
}
