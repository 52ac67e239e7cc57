package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures raised while harvesting
type ErrorType string

const (
	ErrorTypeCredentialInvalid ErrorType = "credential_invalid"
	ErrorTypeAPIQueryFailed    ErrorType = "api_query_failed"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeAssetDownload     ErrorType = "asset_download"
	ErrorTypeEnrichment        ErrorType = "enrichment"
	ErrorTypeCancelled         ErrorType = "cancelled"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a typed harvest error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without a cause
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// Wrap creates a typed error around cause
func Wrap(t ErrorType, cause error, message string) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

// TypeOf returns the type of the first *Error in err's chain, or
// ErrorTypeUnknown when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsFatal reports whether an error type aborts a harvest without retry
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeCredentialInvalid, ErrorTypeAPIQueryFailed:
		return true
	default:
		return false
	}
}
