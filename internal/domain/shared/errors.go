package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrNotFound) matches any NOT_FOUND error regardless of message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by every bounded context
const (
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInvalidState           = "INVALID_STATE"
	CodeValidation             = "VALIDATION_ERROR"
	CodeNoPendingFees          = "NO_PENDING_FEES"
	CodeExternalDispatch       = "EXTERNAL_DISPATCH_FAILURE"
	CodeConcurrentModification = "CONCURRENCY_CONFLICT"
)

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrValidation             = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNoPendingFees          = NewDomainError(CodeNoPendingFees, "No pending fees for student")
	ErrExternalDispatch       = NewDomainError(CodeExternalDispatch, "External dispatch failed")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
)

// NotFoundError returns a NOT_FOUND error with a specific message
func NotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// ValidationError returns a VALIDATION_ERROR with a specific message
func ValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// InvalidStateError returns an INVALID_STATE error with a specific message
func InvalidStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}
