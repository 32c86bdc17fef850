// Package errors provides the structured error taxonomy used by the
// objection coordinator, the simulation kernel boundary and the demo
// pipeline.
//
// # Error Categories
//
// Errors are classified into four categories:
//
//   - Usage: the caller passed something invalid; rejected at the call
//     site with no state mutated (empty objection name, bad duration)
//   - Invariant: assertion-grade programming errors that must abort the
//     offending unit of work (raise before start, double release)
//   - Policy: expected, configured outcomes reported as warnings
//     (forced-timeout shutdown)
//   - Runtime: conditions surfaced at the scheduler boundary (unclean
//     shutdown, cancellation)
//
// None of the categories is retryable. Invariant errors are fatal.
//
// # Error Codes
//
//   - INVALID_ARGUMENT: empty objection name, negative duration
//   - DUPLICATE_NAME: objection name already active in unique-name mode
//   - NOT_READY: objection raised before the watchers started
//   - UNKNOWN_TOKEN: release of a token with nothing outstanding
//   - TIMEOUT: the absolute timeout forced a shutdown
//   - UNCLEAN_SHUTDOWN: the scheduler stopped without a request
//   - And more...
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeNotReady, "objection raised before start",
//	    errors.WithObjection("stimulus"))
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "running stimulus")
//
// Decide whether to abort:
//
//	if errors.IsFatal(err) {
//	    return err
//	}
package errors
