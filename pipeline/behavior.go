package pipeline

import (
	"math/rand"
	"time"

	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// BehaviorConfig configures the device under test.
type BehaviorConfig struct {
	Latency time.Duration

	// Inject enables single-bit error injection at InjectPercent.
	Inject        bool
	InjectPercent float64
	Seed          int64
}

// Behavior applies Transform to every input after its latency.
type Behavior struct {
	env  Env
	name string
	cfg  BehaviorConfig
	log  *logging.Logger
	in   *sim.Signal[Value]
	out  *sim.Signal[Value]

	processed int
	injected  int
}

// NewBehavior creates the behavior and spawns its process.
func NewBehavior(env Env, name string, cfg BehaviorConfig, in, out *sim.Signal[Value]) *Behavior {
	b := &Behavior{
		env:  env,
		name: name,
		cfg:  cfg,
		log:  env.logger(name),
		in:   in,
		out:  out,
	}
	if cfg.Inject {
		b.cfg.InjectPercent = b.normalizePercent(cfg.InjectPercent)
		b.log.Info("injecting bit errors", map[string]interface{}{"percent": b.cfg.InjectPercent})
	}
	env.Kernel.Spawn(name, b.run)
	return b
}

// Processed returns how many values were transformed.
func (b *Behavior) Processed() int {
	return b.processed
}

// Injected returns how many outputs were perturbed.
func (b *Behavior) Injected() int {
	return b.injected
}

func (b *Behavior) normalizePercent(pct float64) float64 {
	if pct > 100 {
		pct = float64(int(pct) % 100)
	}
	if pct <= 0 {
		b.log.Warn("weight should be a number 1..100", map[string]interface{}{"percent": pct})
		pct = 1
	}
	return pct
}

func (b *Behavior) run(p *sim.Proc) error {
	rng := rand.New(rand.NewSource(b.cfg.Seed))
	half := b.cfg.Latency / 2

	for {
		p.WaitEvent(b.in.Changed())
		p.Wait(half)
		recv := b.in.Read()
		b.env.sample(b.name, "recv_value", uint64(recv))
		p.Wait(b.cfg.Latency - half)

		send := Transform(recv)
		if b.cfg.Inject && rng.Float64()*100 < b.cfg.InjectPercent {
			bit := rng.Intn(16)
			b.log.Debug("injecting", map[string]interface{}{"bit": bit})
			send ^= 1 << bit
			b.injected++
		}
		b.processed++
		b.env.sample(b.name, "send_value", uint64(send))
		b.out.Write(send)
	}
}
