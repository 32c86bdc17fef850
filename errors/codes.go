package errors

// ErrorCategory classifies errors by how they must be handled.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryUsage indicates the caller supplied an invalid argument.
	// The operation is rejected and no state is mutated.
	CategoryUsage ErrorCategory = "usage"

	// CategoryInvariant indicates a broken programming invariant.
	// Examples: raising before start, releasing a token twice.
	CategoryInvariant ErrorCategory = "invariant"

	// CategoryPolicy indicates an expected, policy-driven outcome.
	// Examples: the absolute timeout forcing shutdown.
	CategoryPolicy ErrorCategory = "policy"

	// CategoryRuntime indicates a condition at the scheduler boundary.
	// Examples: unclean shutdown, cancellation.
	CategoryRuntime ErrorCategory = "runtime"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsFatal returns true if errors in this category must abort the unit of
// work that produced them.
func (c ErrorCategory) IsFatal() bool {
	return c == CategoryInvariant
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for coordinator and pipeline failures.
const (
	// Usage errors
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT" // Empty name, bad duration
	ErrCodeDuplicateName   ErrorCode = "DUPLICATE_NAME"   // Name already active (unique-name mode)
	ErrCodeInvalidConfig   ErrorCode = "INVALID_CONFIG"   // Configuration failed validation

	// Invariant errors
	ErrCodeNotReady     ErrorCode = "NOT_READY"     // Raise before watchers started
	ErrCodeUnknownToken ErrorCode = "UNKNOWN_TOKEN" // Double release or corrupted counts
	ErrCodeAssertion    ErrorCode = "ASSERTION"     // Elaboration/wiring invariant violated

	// Policy outcomes
	ErrCodeTimeout ErrorCode = "TIMEOUT" // Absolute timeout forced shutdown

	// Runtime errors
	ErrCodeUncleanShutdown ErrorCode = "UNCLEAN_SHUTDOWN" // Scheduler stopped without request
	ErrCodeCanceled        ErrorCode = "CANCELED"         // Run interrupted by context
	ErrCodeInternal        ErrorCode = "INTERNAL"         // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeDuplicateName, ErrCodeInvalidConfig:
		return CategoryUsage
	case ErrCodeNotReady, ErrCodeUnknownToken, ErrCodeAssertion:
		return CategoryInvariant
	case ErrCodeTimeout:
		return CategoryPolicy
	default:
		return CategoryRuntime
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeInvalidArgument: "invalid argument",
	ErrCodeDuplicateName:   "objection name already active",
	ErrCodeInvalidConfig:   "invalid configuration",
	ErrCodeNotReady:        "objection raised before the coordinator started",
	ErrCodeUnknownToken:    "release of an unknown objection token",
	ErrCodeAssertion:       "assertion failed",
	ErrCodeTimeout:         "timed out - shutting down",
	ErrCodeUncleanShutdown: "simulation stopped without an explicit stop request",
	ErrCodeCanceled:        "run canceled",
	ErrCodeInternal:        "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
