// Package objection decides when a cooperatively scheduled program has
// finished its work and may shut down.
//
// # Overview
//
// Every unit of work brackets its activity with an objection: it raises one
// under a name before starting and releases it when done. The registry counts
// outstanding objections per name. When the last one is released it signals
// "drained", and a drain watcher sleeps for the drain time before polling the
// registry again. If nothing was raised in the meantime it requests shutdown;
// otherwise it goes back to watching.
//
// An independent timeout watcher forces shutdown once an absolute timeout
// elapses, regardless of outstanding work. Re-arming the timeout replaces the
// pending deadline.
//
// # Lifecycle
//
//	raise ──▶ count>0 ──release──▶ empty ──drained──▶ wait drain time
//	                                                       │
//	            ┌────────────── outstanding > 0 ◀──────────┤
//	            ▼                                          ▼
//	        watching                              stop the scheduler
//
// # Usage
//
//	k := sim.NewKernel("top")
//	reg := objection.New(k, objection.Config{DrainTime: 2 * time.Nanosecond})
//	if err := reg.Start(); err != nil {
//	    return err
//	}
//
//	k.Spawn("worker", func(p *sim.Proc) error {
//	    return reg.Hold("worker", func() error {
//	        p.Wait(5 * time.Nanosecond)
//	        return nil
//	    })
//	})
//
//	err := k.Run(ctx) // nil once the drain watcher stops the kernel
//
// # Forced Shutdown
//
// Tokens still outstanding when the scheduler stops are not released through
// the normal path. Their owners are unwound by the scheduler and the release
// is counted as abandoned so the final report can show it.
package objection
