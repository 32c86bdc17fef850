package pipeline

import (
	"math/rand"
	"time"

	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// StimulusConfig configures sample generation.
type StimulusConfig struct {
	Samples int
	Period  time.Duration
	Seed    int64
}

// Stimulus generates random samples into a fifo, holding an objection for
// the whole run.
type Stimulus struct {
	env     Env
	name    string
	cfg     StimulusConfig
	log     *logging.Logger
	out     *sim.Fifo[Value]
	running *sim.Signal[bool]
	sent    int
}

// NewStimulus creates the stimulus and spawns its process.
func NewStimulus(env Env, name string, cfg StimulusConfig) *Stimulus {
	s := &Stimulus{
		env:     env,
		name:    name,
		cfg:     cfg,
		log:     env.logger(name),
		out:     sim.NewFifo[Value](env.Kernel, name+".out", 4),
		running: sim.NewSignal[bool](env.Kernel, name+".running"),
	}
	env.Kernel.Spawn(name, s.run)
	return s
}

// Out returns the sample fifo.
func (s *Stimulus) Out() *sim.Fifo[Value] {
	return s.out
}

// Running returns the signal that is true while samples are generated.
func (s *Stimulus) Running() *sim.Signal[bool] {
	return s.running
}

// Sent returns how many samples have been written.
func (s *Stimulus) Sent() int {
	return s.sent
}

func (s *Stimulus) run(p *sim.Proc) error {
	n := s.cfg.Samples
	if n < 1 {
		s.log.Warn("sample size should be a number 1..100", map[string]interface{}{"samples": n})
		n = 1
	}
	s.log.Info("generating samples", map[string]interface{}{"samples": n})

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	s.running.Write(true)
	s.env.sample(s.name, "running", 1)

	return s.env.Registry.Hold(s.name, func() error {
		for i := 0; i < n; i++ {
			v := Value(rng.Intn(1 << 16))
			p.Wait(s.cfg.Period)
			s.log.Debug("sending", map[string]interface{}{"value": hex(v)})
			s.sent++
			s.env.sample(s.name, "test_count", uint64(s.sent))
			s.env.sample(s.name, "value", uint64(v))
			s.out.Put(p, v)
		}

		s.log.Info("stimulus sent samples", map[string]interface{}{"samples": s.sent})
		s.running.Write(false)
		s.env.sample(s.name, "running", boolValue(false))
		return nil
	})
}
