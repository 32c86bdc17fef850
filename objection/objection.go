package objection

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/vinayprograms/quiesce/bus"
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// DefaultDrainTime applies when no drain time was set before Start.
const DefaultDrainTime = 10 * time.Nanosecond

// Common errors.
var (
	ErrAlreadyStarted = stderrors.New("objection registry already started")
)

// Scheduler is the part of the simulation kernel the registry relies on.
// *sim.Kernel implements it.
type Scheduler interface {
	Now() time.Duration
	IsRunning() bool
	Stop()
	Done() <-chan struct{}
	Spawn(name string, fn sim.ProcFunc) *sim.Proc
	NewEvent(name string) *sim.Event
}

// Config configures a Registry.
type Config struct {
	// DrainTime is how long the registry must stay empty before shutdown.
	// Zero selects DefaultDrainTime at Start.
	DrainTime time.Duration

	// Timeout arms the absolute timeout at Start. Zero leaves it disarmed.
	Timeout time.Duration

	// UniqueNames rejects a raise whose name is already active instead of
	// counting it.
	UniqueNames bool
}

// OutcomeKind describes how a run concluded.
type OutcomeKind string

const (
	OutcomeNone     OutcomeKind = ""
	OutcomeDrained  OutcomeKind = "drained"
	OutcomeTimedOut OutcomeKind = "timed_out"
)

// Outcome records the shutdown decision taken by a watcher.
type Outcome struct {
	Kind OutcomeKind

	// Reason is the name of the objection whose release opened the final
	// drain window. Empty for timeouts.
	Reason string

	// At is the simulated time of the shutdown request.
	At time.Duration

	// Outstanding is the number of objections still raised at the time.
	Outstanding int
}

// Concluded reports whether a watcher has requested shutdown.
func (o Outcome) Concluded() bool {
	return o.Kind != OutcomeNone
}

// Event subjects published on the bus.
const (
	SubjectRaised    = "objection.raised"
	SubjectDropped   = "objection.dropped"
	SubjectDrained   = "objection.drained"
	SubjectShutdown  = "objection.shutdown"
	SubjectTimeout   = "objection.timeout"
	SubjectAbandoned = "objection.abandoned"
	SubjectViolation = "objection.violation"
)

// Event is the payload of every objection bus message.
type Event struct {
	Run         string          `json:"run"`
	Kind        string          `json:"kind"`
	At          time.Duration   `json:"at"`
	Objection   string          `json:"objection,omitempty"`
	Token       string          `json:"token,omitempty"`
	Count       int             `json:"count"`
	Outstanding int             `json:"outstanding"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// Option configures optional Registry collaborators.
type Option func(*Registry)

// WithLogger sets the logger. The registry and its watchers derive
// component loggers from it.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithBus publishes objection lifecycle events on b.
func WithBus(b bus.MessageBus) Option {
	return func(r *Registry) {
		r.bus = b
	}
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(r *Registry) {
		r.runID = id
	}
}
