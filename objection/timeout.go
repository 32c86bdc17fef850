package objection

import (
	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/sim"
)

// timeoutWatcher forces shutdown once the absolute timeout elapses. Each
// re-arm replaces the pending deadline with now plus the current timeout.
func (r *Registry) timeoutWatcher(log *logging.Logger) sim.ProcFunc {
	return func(p *sim.Proc) error {
		p.WaitEvent(r.armed)
		deadline := p.Now() + r.Timeout()
		log.Debug("armed", map[string]interface{}{"deadline": deadline})

		for {
			if p.WaitEventFor(deadline-p.Now(), r.armed) {
				deadline = p.Now() + r.Timeout()
				log.Debug("re-armed", map[string]interface{}{"deadline": deadline})
				continue
			}

			// Let the rest of this instant settle so a re-arm issued at the
			// deadline itself still supersedes it.
			if p.WaitEventFor(0, r.armed) {
				deadline = p.Now() + r.Timeout()
				log.Debug("re-armed", map[string]interface{}{"deadline": deadline})
				continue
			}

			o := r.conclude(OutcomeTimedOut, "")
			if o.Kind == OutcomeTimedOut {
				log.TimedOut(r.Timeout(), o.Outstanding)
				r.publish(SubjectTimeout, Event{Kind: "timeout", Outstanding: o.Outstanding})
			}
			return nil
		}
	}
}
