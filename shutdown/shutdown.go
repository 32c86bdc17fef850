package shutdown

import (
	"context"
	"errors"
	"os"
	"time"
)

// Common errors.
var (
	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed during shutdown.
	ErrHandlerFailed = errors.New("one or more handlers failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Standard phases.
const (
	PhaseReport  = 10
	PhaseFlush   = 20
	PhaseRelease = 100
)

// Notice describes how a run ended.
type Notice struct {
	// Outcome is the coordinator's decision ("drained", "timed_out"), empty
	// when the run ended some other way.
	Outcome string

	// Reason is the objection whose release opened the final drain window.
	Reason string

	// At is the simulated time at which the run stopped.
	At time.Duration

	// Outstanding counts objections still raised when the run stopped.
	Outstanding int

	// Abandoned counts tokens whose release logic never ran.
	Abandoned int

	// Signal is the OS signal that requested the stop, if any.
	Signal os.Signal

	// Err is the error returned by the scheduler, if any.
	Err error
}

// Clean reports whether the run concluded through the coordinator without
// error.
func (n Notice) Clean() bool {
	return n.Err == nil && n.Outcome != "" && n.Signal == nil
}

// ShutdownHandler is implemented by components that react to the end of a
// run.
type ShutdownHandler interface {
	// OnShutdown is called once the scheduler has stopped.
	// The context will be cancelled when the timeout is reached.
	OnShutdown(ctx context.Context, notice Notice) error
}

// ShutdownFunc is a convenience type for simple shutdown functions.
type ShutdownFunc func(ctx context.Context, notice Notice) error

// OnShutdown implements ShutdownHandler.
func (f ShutdownFunc) OnShutdown(ctx context.Context, notice Notice) error {
	return f(ctx, notice)
}

// HandlerResult contains the result of a single handler's shutdown.
type HandlerResult struct {
	// Name of the handler.
	Name string

	// Phase the handler was registered with.
	Phase int

	// Duration how long the handler took.
	Duration time.Duration

	// Err is any error returned by the handler.
	Err error
}

// ShutdownResult contains the complete shutdown result.
type ShutdownResult struct {
	// Notice delivered to every handler.
	Notice Notice

	// TotalDuration of the entire shutdown process.
	TotalDuration time.Duration

	// Results for each handler.
	Results []HandlerResult

	// Err is the overall error (nil if all handlers succeeded).
	Err error
}

// Failed returns true if any handler failed.
func (r *ShutdownResult) Failed() bool {
	return r.Err != nil
}

// FailedHandlers returns the names of handlers that failed.
func (r *ShutdownResult) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

// Config configures the shutdown coordinator.
type Config struct {
	// DefaultTimeout is used when ShutdownWithTimeout is called without a timeout.
	// Default: 10 seconds
	DefaultTimeout time.Duration

	// DefaultPhase is assigned to handlers registered without a phase.
	// Default: PhaseRelease
	DefaultPhase int

	// ContinueOnError determines whether later phases still run after a
	// handler fails.
	// Default: true
	ContinueOnError bool

	// OnProgress is called when each handler completes.
	// Can be used for logging.
	OnProgress func(result HandlerResult)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DefaultTimeout < 0 || c.DefaultPhase < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  10 * time.Second,
		DefaultPhase:    PhaseRelease,
		ContinueOnError: true,
	}
}

// registration holds a registered handler with its metadata.
type registration struct {
	name    string
	handler ShutdownHandler
	phase   int
}
