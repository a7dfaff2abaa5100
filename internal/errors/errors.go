package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Error types for the categories of failures that abort a run
type ErrorType string

const (
	ErrorTypeInput         ErrorType = "input"
	ErrorTypeEncoding      ErrorType = "encoding"
	ErrorTypeIndex         ErrorType = "index"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeDisplay       ErrorType = "display"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// TypeOf reports the ErrorType of the first StructuredError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

// Is reports whether err carries a StructuredError of the given type.
func Is(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, this function and the constructor
	return pcs[:n]
}

// NewInputError creates an input error
func NewInputError(operation, message string) *StructuredError {
	return New(ErrorTypeInput, operation, message)
}

// NewEncodingError creates an encoding error
func NewEncodingError(operation, message string) *StructuredError {
	return New(ErrorTypeEncoding, operation, message)
}

// NewIndexError creates an index error
func NewIndexError(operation, message string) *StructuredError {
	return New(ErrorTypeIndex, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// WrapInputError wraps an error as an input error
func WrapInputError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeInput, operation, message)
}

// WrapEncodingError wraps an error as an encoding error
func WrapEncodingError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeEncoding, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}

// WrapDisplayError wraps an error as a display error
func WrapDisplayError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeDisplay, operation, message)
}
