package objection

import (
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// drainWatcher waits for the registry to empty, sleeps the drain time and
// then polls. Releases and raises during the sleep are not observed
// individually; only the state at the deadline counts.
func (r *Registry) drainWatcher(log *logging.Logger) sim.ProcFunc {
	return func(p *sim.Proc) error {
		for {
			p.WaitEvent(r.drained)

			reason := r.takeStopReason()
			d := r.DrainTime()
			log.Draining(reason, d)
			p.Wait(d)

			if r.Outstanding() != 0 {
				log.Debug("objections raised while draining", map[string]interface{}{
					"active": r.Active(),
				})
				continue
			}

			o := r.conclude(OutcomeDrained, reason)
			if o.Kind == OutcomeDrained {
				log.ShuttingDown(reason)
				r.publish(SubjectShutdown, Event{Kind: "shutdown", Objection: reason})
			}
			return nil
		}
	}
}
