// Package poolerrors provides structured error handling for poolkit with
// rich context, stack traces, and error categorization. It enables a single
// consistent error-handling pattern across the pool, registry, and
// maintenance packages.
//
// # Overview
//
// The poolerrors package extends Go's standard error handling with:
//   - Error categorization through ErrorType
//   - Structured context with key-value details
//   - Automatic stack trace capture
//   - Error wrapping with cause preservation
//   - Retryability detection
//
// # Basic Usage
//
//	// Create a new error
//	err := poolerrors.New(poolerrors.ErrorTypeExhausted, "pool at maximum capacity")
//
//	// Add context
//	err = err.WithDetail("pool", "render-targets").
//	         WithDetail("max_capacity", 64)
//
//	// Wrap existing errors
//	if obj, err := cfg.Factory(); err != nil {
//	    return poolerrors.Wrap(err, poolerrors.ErrorTypeFactory, "factory failed").
//	        WithDetail("pool", p.cfg.Name)
//	}
//
// # Error Types
//
// Callers are expected to branch on the error type rather than on message
// text. In particular, ErrorTypeExhausted (pool full, back off or degrade)
// must be distinguishable from ErrorTypeNotFound (registration bug).
package poolerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used for error handling
// strategies, monitoring, and diagnostics.
type ErrorType string

const (
	// ErrorTypeExhausted indicates the pool is at maximum capacity with no
	// idle instances; the caller must back off, retry, or degrade.
	ErrorTypeExhausted ErrorType = "exhausted"
	// ErrorTypeNotFound indicates no pool is registered under the given key.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeAlreadyRegistered indicates a pool already exists for the key.
	ErrorTypeAlreadyRegistered ErrorType = "already_registered"
	// ErrorTypeNotOwned indicates a returned lease was not issued by the
	// pool it was returned to, or was already returned.
	ErrorTypeNotOwned ErrorType = "not_owned"
	// ErrorTypeFactory indicates the caller-supplied factory failed.
	ErrorTypeFactory ErrorType = "factory"
	// ErrorTypeValidation indicates an instance failed its validation
	// predicate. Recorded in statistics, not normally surfaced to callers.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeMaintenance indicates a failure inside a maintenance pass.
	ErrorTypeMaintenance ErrorType = "maintenance"
	// ErrorTypeConfig indicates invalid pool or strategy configuration.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeShutdown indicates an operation against a torn-down registry.
	ErrorTypeShutdown ErrorType = "shutdown"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. This method can be
// chained for adding multiple details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the
// original error as the cause. If the error is already a structured Error,
// its stack trace is preserved. Returns nil if the input error is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable based on its type.
// Exhaustion is the only retryable condition: the pool may free up as other
// callers return their leases. Everything else signals a caller or
// configuration bug that retrying will not fix.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeExhausted
}

// IsType checks if the error is of the given type.
//
// Example:
//
//	if poolerrors.IsType(err, poolerrors.ErrorTypeExhausted) {
//	    // pool full: back off and retry
//	}
//	if poolerrors.IsType(err, poolerrors.ErrorTypeNotFound) {
//	    // registration bug: fix the wiring, do not retry
//	}
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
