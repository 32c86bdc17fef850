package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a structured Error, the wrapper keeps its code and category.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		wrapped := &Error{
			code:      se.code,
			category:  se.category,
			message:   message,
			cause:     err,
			metadata:  se.Metadata(),
			objection: se.objection,
			token:     se.token,
			simTime:   se.simTime,
			hasTime:   se.hasTime,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsStructured extracts a StructuredError from an error chain.
// Returns nil if none is found.
func AsStructured(err error) StructuredError {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var se *Error
		if !errors.As(err, &se) {
			return false
		}
		if se.code == code {
			return true
		}
		err = se.cause
	}
	return false
}

// IsCategory checks if the outermost structured error has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.category == category
	}
	return false
}

// IsFatal checks if the error must abort its unit of work.
func IsFatal(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return false
}

// Code extracts the error code from an error, if available.
// Returns empty string if err carries no structured error.
func Code(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
func Category(err error) ErrorCategory {
	var se *Error
	if errors.As(err, &se) {
		return se.category
	}
	return ""
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into a single error.
// If all errors are nil, returns nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		return New(ErrCodeInternal, "recovered from panic", WithCause(v),
			WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodeInternal, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
