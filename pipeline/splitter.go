package pipeline

import (
	"fmt"

	"github.com/vinayprograms/quiesce/errors"
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// Splitter copies one input stream to up to three outputs. The input is
// either a fifo or a signal; outputs exist only once requested.
type Splitter[T comparable] struct {
	env  Env
	name string
	log  *logging.Logger

	fifoIn *sim.Fifo[T]
	sigIn  *sim.Signal[T]

	fifoOut *sim.Fifo[T]
	sig1    *sim.Signal[T]
	sig2    *sim.Signal[T]

	transfers uint64
}

// NewSplitter creates an unconnected splitter.
func NewSplitter[T comparable](env Env, name string) *Splitter[T] {
	return &Splitter[T]{
		env:  env,
		name: name,
		log:  env.logger(name),
	}
}

// ConnectFifo uses in as the input.
func (s *Splitter[T]) ConnectFifo(in *sim.Fifo[T]) {
	s.fifoIn = in
}

// ConnectSignal uses in as the input.
func (s *Splitter[T]) ConnectSignal(in *sim.Signal[T]) {
	s.sigIn = in
}

// FifoOut returns the fifo output, creating it on first use. Writes to it
// are dropped while it is full.
func (s *Splitter[T]) FifoOut() *sim.Fifo[T] {
	if s.fifoOut == nil {
		s.fifoOut = sim.NewFifo[T](s.env.Kernel, s.name+".fifo", 1)
	}
	return s.fifoOut
}

// Sig1 returns the first signal output, creating it on first use.
func (s *Splitter[T]) Sig1() *sim.Signal[T] {
	if s.sig1 == nil {
		s.sig1 = sim.NewBuffer[T](s.env.Kernel, s.name+".sig1")
	}
	return s.sig1
}

// Sig2 returns the second signal output, creating it on first use.
func (s *Splitter[T]) Sig2() *sim.Signal[T] {
	if s.sig2 == nil {
		s.sig2 = sim.NewBuffer[T](s.env.Kernel, s.name+".sig2")
	}
	return s.sig2
}

// Transfers returns how many values have been copied.
func (s *Splitter[T]) Transfers() uint64 {
	return s.transfers
}

// Elaborate checks the connections and spawns the transfer process. Exactly
// one input must be connected.
func (s *Splitter[T]) Elaborate() error {
	if (s.fifoIn == nil) == (s.sigIn == nil) {
		return errors.Assertion(fmt.Sprintf("%s: exactly one input must be connected", s.name))
	}

	outputs := 0
	for _, used := range []bool{s.fifoOut != nil, s.sig1 != nil, s.sig2 != nil} {
		if used {
			outputs++
		}
	}
	switch outputs {
	case 0:
		s.log.Warn("no outputs are connected")
	case 1:
		s.log.Warn("only one output is connected")
	}

	s.env.Kernel.Spawn(s.name, s.transfer)
	return nil
}

func (s *Splitter[T]) transfer(p *sim.Proc) error {
	for {
		var v T
		if s.fifoIn != nil {
			v = s.fifoIn.Get(p)
		} else {
			p.WaitEvent(s.sigIn.Changed())
			v = s.sigIn.Read()
		}
		s.transfers++
		s.log.Debug("transferring", map[string]interface{}{"value": v})

		if s.sig1 != nil {
			s.sig1.Write(v)
		}
		if s.sig2 != nil {
			s.sig2.Write(v)
		}
		if s.fifoOut != nil {
			s.fifoOut.TryPut(v)
		}
	}
}
