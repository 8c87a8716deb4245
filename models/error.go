package models

import "errors"

// APIError is the error type every user-facing failure resolves to. The
// Type field carries the service-compatible error kind so callers can
// distinguish failures programmatically.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func New(typ, msg string) *APIError {
	return &APIError{Type: typ, Message: msg}
}

const (
	ErrCodeValidation             = "ValidationException"
	ErrCodeConditionalCheckFailed = "ConditionalCheckFailedException"
	ErrCodeResourceNotFound       = "ResourceNotFoundException"
	ErrCodeResourceInUse          = "ResourceInUseException"
	ErrCodeTransactionCanceled    = "TransactionCanceledException"
	ErrCodeInternal               = "InternalFailure"
)

// HasErrorCode reports whether err is (or wraps) an APIError of the given
// kind.
func HasErrorCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == code
	}
	return false
}
