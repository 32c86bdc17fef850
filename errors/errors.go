package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// StructuredError is the interface for all structured errors in quiesce.
type StructuredError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category.
	Category() ErrorCategory

	// Fatal returns true if the unit of work that produced the error must
	// be aborted.
	Fatal() bool

	// Metadata returns additional context as key-value pairs.
	Metadata() map[string]string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of StructuredError.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	objection string
	token     string
	simTime   time.Duration
	hasTime   bool
}

var (
	_ StructuredError = (*Error)(nil)
	_ json.Marshaler  = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Fatal returns whether this error must abort its unit of work.
func (e *Error) Fatal() bool {
	return e.category.IsFatal()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Objection returns the objection name the error concerns, if set.
func (e *Error) Objection() string {
	return e.objection
}

// Token returns the objection token ID the error concerns, if set.
func (e *Error) Token() string {
	return e.token
}

// SimTime returns the simulated time at which the error occurred.
func (e *Error) SimTime() (time.Duration, bool) {
	return e.simTime, e.hasTime
}

type errorJSON struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Fatal     bool              `json:"fatal"`
	Objection string            `json:"objection,omitempty"`
	Token     string            `json:"token,omitempty"`
	SimTime   string            `json:"sim_time,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Metadata:  e.metadata,
		Fatal:     e.Fatal(),
		Objection: e.objection,
		Token:     e.token,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if e.hasTime {
		j.SimTime = e.simTime.String()
	}
	return json.Marshal(j)
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithObjection records the objection name.
func WithObjection(name string) Option {
	return func(e *Error) {
		e.objection = name
	}
}

// WithToken records the objection token ID.
func WithToken(id string) Option {
	return func(e *Error) {
		e.token = id
	}
}

// WithSimTime records the simulated time of the failure.
func WithSimTime(t time.Duration) Option {
	return func(e *Error) {
		e.simTime = t
		e.hasTime = true
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:     code,
		category: code.DefaultCategory(),
		message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidArgument, message, opts...)
}

// NotReady creates a not-ready error for the named objection.
func NotReady(name string, opts ...Option) *Error {
	opts = append([]Option{WithObjection(name)}, opts...)
	return New(ErrCodeNotReady,
		fmt.Sprintf("objection %q raised before the coordinator started", name), opts...)
}

// UnknownToken creates an unknown token error for the named objection.
func UnknownToken(name string, reason string, opts ...Option) *Error {
	opts = append([]Option{WithObjection(name)}, opts...)
	return New(ErrCodeUnknownToken,
		fmt.Sprintf("release of objection %q: %s", name, reason), opts...)
}

// Assertion creates an assertion error.
func Assertion(message string, opts ...Option) *Error {
	return New(ErrCodeAssertion, message, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
