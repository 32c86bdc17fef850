package pipeline

import (
	"fmt"

	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// CheckingObjection is raised by the observer for every comparison in
// flight.
const CheckingObjection = "observing"

// Observer predicts the expected output for every input it sees and
// compares it with the actual output.
type Observer struct {
	env      Env
	name     string
	log      *logging.Logger
	expect   *sim.Signal[Value]
	actual   *sim.Signal[Value]
	expected *sim.Fifo[Value]

	observed int
	failures int
}

// NewObserver creates the observer and spawns its processes. expect carries
// the inputs sent to the behavior.
func NewObserver(env Env, name string, expect *sim.Signal[Value]) *Observer {
	o := &Observer{
		env:      env,
		name:     name,
		log:      env.logger(name),
		expect:   expect,
		actual:   sim.NewBuffer[Value](env.Kernel, name+".actual"),
		expected: sim.NewFifo[Value](env.Kernel, name+".expected", 0),
	}
	env.Kernel.Spawn(name+".prepare", o.prepare)
	env.Kernel.Spawn(name+".checker", o.checker)
	return o
}

// Actual returns the signal the behavior writes its outputs to.
func (o *Observer) Actual() *sim.Signal[Value] {
	return o.actual
}

// Observed returns how many outputs were compared.
func (o *Observer) Observed() int {
	return o.observed
}

// Failures returns how many comparisons mismatched.
func (o *Observer) Failures() int {
	return o.failures
}

func (o *Observer) prepare(p *sim.Proc) error {
	for {
		p.WaitEvent(o.expect.Changed())
		received := o.expect.Read()
		computed := Transform(received)
		o.env.sample(o.name, "received_value", uint64(received))
		o.log.Debug("computed", map[string]interface{}{"value": hex(computed)})
		o.expected.TryPut(computed)
	}
}

func (o *Observer) checker(p *sim.Proc) error {
	for {
		want := o.expected.Get(p)
		o.env.sample(o.name, "expected_value", uint64(want))

		err := o.env.Registry.Hold(CheckingObjection, func() error {
			p.WaitEvent(o.actual.Changed())
			got := o.actual.Read()
			o.observed++
			o.env.sample(o.name, "actual_value", uint64(got))
			o.env.sample(o.name, "observed_count", uint64(o.observed))

			if got == want {
				o.log.Debug("good value", map[string]interface{}{"value": hex(got)})
				return nil
			}
			o.failures++
			o.env.sample(o.name, "failures_count", uint64(o.failures))
			o.log.Error("mismatch", map[string]interface{}{
				"got":      hex(got),
				"expected": hex(want),
			})
			return nil
		})
		if err != nil {
			return err
		}
	}
}

func hex(v Value) string {
	return fmt.Sprintf("0x%04x", v)
}
