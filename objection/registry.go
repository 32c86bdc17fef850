package objection

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/quiesce/bus"
	"github.com/vinayprograms/quiesce/errors"
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// Registry tracks outstanding objections and owns the two watchers that
// turn its state into a shutdown request.
//
// Raise, Release and the setters must be called from process context.
// The read-only accessors may be called from any goroutine.
type Registry struct {
	sched Scheduler
	log   *logging.Logger
	bus   bus.MessageBus
	runID string

	unique bool

	started atomic.Bool
	drained *sim.Event
	armed   *sim.Event

	mu         sync.Mutex
	active     map[string]int
	created    uint64
	released   uint64
	abandoned  int
	drainTime  time.Duration
	timeout    time.Duration
	stopReason string
	ready      bool
	outcome    Outcome
}

// New creates a registry bound to sched. Raise fails until Start is called.
func New(sched Scheduler, cfg Config, opts ...Option) *Registry {
	r := &Registry{
		sched:     sched,
		unique:    cfg.UniqueNames,
		active:    make(map[string]int),
		drainTime: cfg.DrainTime,
		timeout:   cfg.Timeout,
		drained:   sched.NewEvent("objection.drained"),
		armed:     sched.NewEvent("objection.armed"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.New()
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r
}

// Start spawns the drain and timeout watchers, applies the drain time
// fallback and arms the configured timeout. Raise succeeds afterwards.
func (r *Registry) Start() error {
	if r.DrainTime() < 0 {
		return errors.InvalidArgument(fmt.Sprintf("negative drain time %v", r.DrainTime()))
	}
	if r.started.Swap(true) {
		return ErrAlreadyStarted
	}

	r.sched.Spawn("objection.drain", r.drainWatcher(r.log.WithComponent("drain")))
	r.sched.Spawn("objection.timeout", r.timeoutWatcher(r.log.WithComponent("timeout")))

	r.mu.Lock()
	if r.drainTime == 0 {
		r.drainTime = DefaultDrainTime
	}
	r.ready = true
	timeout := r.timeout
	r.mu.Unlock()

	if timeout > 0 {
		return r.SetTimeout(timeout)
	}
	return nil
}

// RunID returns the identifier stamped on every published event.
func (r *Registry) RunID() string {
	return r.runID
}

// Raise records a new objection under name and returns its token.
func (r *Registry) Raise(name string) (*Token, error) {
	if name == "" {
		return nil, errors.InvalidArgument("objection name must not be empty",
			errors.WithSimTime(r.sched.Now()))
	}
	if r.finished() {
		return nil, errors.New(errors.ErrCodeNotReady,
			fmt.Sprintf("objection %q raised after shutdown", name),
			errors.WithObjection(name), errors.WithSimTime(r.sched.Now()))
	}

	r.mu.Lock()
	if !r.ready {
		r.mu.Unlock()
		err := errors.NotReady(name, errors.WithSimTime(r.sched.Now()))
		r.violation(name, "", err)
		return nil, err
	}
	if r.unique && r.active[name] > 0 {
		r.mu.Unlock()
		return nil, errors.New(errors.ErrCodeDuplicateName,
			fmt.Sprintf("objection %q is already active", name),
			errors.WithObjection(name), errors.WithSimTime(r.sched.Now()))
	}
	r.active[name]++
	r.created++
	count := r.active[name]
	outstanding := r.outstandingLocked()
	r.mu.Unlock()

	tok := &Token{r: r, name: name, id: uuid.New()}
	r.log.ObjectionRaised(name, count)
	r.publish(SubjectRaised, Event{
		Kind:        "raised",
		Objection:   name,
		Token:       tok.id.String(),
		Count:       count,
		Outstanding: outstanding,
	})
	return tok, nil
}

// Hold raises an objection, runs fn and releases the objection on every
// exit path, including a panic. A release failure is joined into the
// returned error.
func (r *Registry) Hold(name string, fn func() error) (err error) {
	tok, err := r.Raise(name)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tok.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn()
}

// release drops one objection held by tok.
func (r *Registry) release(tok *Token) error {
	name := tok.name

	if r.finished() {
		r.mu.Lock()
		r.abandoned++
		outstanding := r.outstandingLocked()
		r.mu.Unlock()

		r.publish(SubjectAbandoned, Event{
			Kind:        "abandoned",
			Objection:   name,
			Token:       tok.id.String(),
			Outstanding: outstanding,
		})
		return nil
	}

	r.mu.Lock()
	count := r.active[name]
	if count <= 0 {
		r.mu.Unlock()
		return r.unknownToken(tok, "no outstanding objection under this name")
	}
	count--
	if count == 0 {
		delete(r.active, name)
	} else {
		r.active[name] = count
	}
	r.released++
	empty := len(r.active) == 0
	notify := empty && r.sched.IsRunning()
	if notify {
		r.stopReason = name
	}
	r.mu.Unlock()

	r.log.ObjectionDropped(name, count)
	r.publish(SubjectDropped, Event{
		Kind:      "dropped",
		Objection: name,
		Token:     tok.id.String(),
		Count:     count,
	})

	if notify {
		r.drained.Notify(0)
		r.publish(SubjectDrained, Event{Kind: "drained", Objection: name})
	}
	return nil
}

// Outstanding returns the number of objections currently raised.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstandingLocked()
}

func (r *Registry) outstandingLocked() int {
	n := 0
	for _, c := range r.active {
		n += c
	}
	return n
}

// TotalCreated returns the number of objections ever raised.
func (r *Registry) TotalCreated() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// TotalReleased returns the number of objections released normally.
func (r *Registry) TotalReleased() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Active returns a copy of the outstanding count per name.
func (r *Registry) Active() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[string]int, len(r.active))
	for k, v := range r.active {
		result[k] = v
	}
	return result
}

// Abandoned returns how many tokens were released after the scheduler had
// already finished.
func (r *Registry) Abandoned() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandoned
}

// Outcome returns the shutdown decision, if any watcher has taken one.
func (r *Registry) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// SetDrainTime sets the drain time. It takes effect at the next drain.
func (r *Registry) SetDrainTime(d time.Duration) error {
	if d < 0 {
		return errors.InvalidArgument(fmt.Sprintf("negative drain time %v", d))
	}
	r.mu.Lock()
	r.drainTime = d
	r.mu.Unlock()
	return nil
}

// DrainTime returns the current drain time.
func (r *Registry) DrainTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainTime
}

// SetTimeout sets the absolute timeout and re-arms the timeout watcher.
// The new deadline is measured from the current time.
func (r *Registry) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return errors.InvalidArgument(fmt.Sprintf("timeout must be positive, got %v", d))
	}
	r.mu.Lock()
	r.timeout = d
	r.mu.Unlock()

	r.armed.Notify(0)
	return nil
}

// Timeout returns the current absolute timeout, zero when never armed.
func (r *Registry) Timeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeout
}

// takeStopReason returns and clears the name that opened the drain window.
func (r *Registry) takeStopReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason := r.stopReason
	r.stopReason = ""
	return reason
}

// conclude records the outcome and stops the scheduler. The first
// conclusion wins.
func (r *Registry) conclude(kind OutcomeKind, reason string) Outcome {
	r.mu.Lock()
	if r.outcome.Concluded() {
		o := r.outcome
		r.mu.Unlock()
		return o
	}
	r.outcome = Outcome{
		Kind:        kind,
		Reason:      reason,
		At:          r.sched.Now(),
		Outstanding: r.outstandingLocked(),
	}
	o := r.outcome
	r.mu.Unlock()

	r.sched.Stop()
	return o
}

func (r *Registry) finished() bool {
	select {
	case <-r.sched.Done():
		return true
	default:
		return false
	}
}

func (r *Registry) publish(subject string, ev Event) {
	if r.bus == nil {
		return
	}
	ev.Run = r.runID
	ev.At = r.sched.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("encode event", map[string]interface{}{"subject": subject, "error": err})
		return
	}
	if err := r.bus.Publish(subject, data); err != nil {
		r.log.Debug("publish event", map[string]interface{}{"subject": subject, "error": err})
	}
}

// unknownToken reports a release the registry cannot account for.
func (r *Registry) unknownToken(tok *Token, reason string) *errors.Error {
	err := errors.UnknownToken(tok.name, reason,
		errors.WithToken(tok.id.String()), errors.WithSimTime(r.sched.Now()))
	r.violation(tok.name, tok.id.String(), err)
	return err
}

func (r *Registry) violation(name, token string, err *errors.Error) {
	if r.bus == nil {
		return
	}
	data, jerr := json.Marshal(err)
	if jerr != nil {
		return
	}
	r.publish(SubjectViolation, Event{
		Kind:      "violation",
		Objection: name,
		Token:     token,
		Error:     data,
	})
}
