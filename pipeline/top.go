package pipeline

import (
	"github.com/vinayprograms/quiesce/errors"
)

// Config configures the whole pipeline.
type Config struct {
	Stimulus StimulusConfig
	Behavior BehaviorConfig
}

// Top wires stimulus, splitter, behavior and observer together.
type Top struct {
	Stimulus *Stimulus
	Splitter *Splitter[Value]
	Behavior *Behavior
	Observer *Observer
}

// Report summarizes a run.
type Report struct {
	Sent      int
	Processed int
	Observed  int
	Failures  int
	Injected  int
}

// Passed reports whether every sample was observed and matched.
func (r Report) Passed() bool {
	return r.Failures == 0 && r.Observed == r.Sent
}

// New builds the pipeline and spawns its processes on env.Kernel.
func New(env Env, cfg Config) (*Top, error) {
	if env.Kernel == nil || env.Registry == nil {
		return nil, errors.InvalidArgument("pipeline needs a kernel and a registry")
	}

	t := &Top{}
	t.Stimulus = NewStimulus(env, "stimulus", cfg.Stimulus)

	t.Splitter = NewSplitter[Value](env, "splitter")
	t.Splitter.ConnectFifo(t.Stimulus.Out())

	t.Observer = NewObserver(env, "observer", t.Splitter.Sig2())
	t.Behavior = NewBehavior(env, "behavior", cfg.Behavior, t.Splitter.Sig1(), t.Observer.Actual())

	if err := t.Splitter.Elaborate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Report returns the current counters.
func (t *Top) Report() Report {
	return Report{
		Sent:      t.Stimulus.Sent(),
		Processed: t.Behavior.Processed(),
		Observed:  t.Observer.Observed(),
		Failures:  t.Observer.Failures(),
		Injected:  t.Behavior.Injected(),
	}
}
