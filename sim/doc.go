// Package sim provides a small cooperative discrete-event scheduler.
//
// # Overview
//
// A Kernel owns a simulated clock and a set of processes. Exactly one
// process runs at any moment; a process only gives up control at an explicit
// suspension point (Wait, WaitEvent, WaitEventFor). Each process is backed by
// a goroutine, but the kernel hands a single baton between them, so state
// shared by processes needs no locking as long as it is only touched from
// process context.
//
// # Scheduling
//
// Each simulated instant is evaluated in delta cycles:
//
//	┌──────────────┐   runnable empty   ┌──────────────┐   nothing pending   ┌──────────────┐
//	│  evaluate    │ ─────────────────→ │ delta notify │ ──────────────────→ │ advance time │
//	│  processes   │ ←───────────────── │ (Notify(0))  │ ←────────────────── │ (timed queue)│
//	└──────────────┘                    └──────────────┘                     └──────────────┘
//
// Event.Notify(0) triggers in the next delta cycle, Notify(d) d later. A
// pending notification that is earlier than a new one wins. A notification
// only wakes processes that are waiting on the event when it triggers.
//
// # Usage
//
//	k := sim.NewKernel("top")
//	done := k.NewEvent("done")
//
//	k.Spawn("producer", func(p *sim.Proc) error {
//	    p.Wait(10 * time.Nanosecond)
//	    done.Notify(0)
//	    return nil
//	})
//	k.Spawn("consumer", func(p *sim.Proc) error {
//	    p.WaitEvent(done)
//	    k.Stop()
//	    return nil
//	})
//
//	if err := k.Run(ctx); err != nil {
//	    // ErrStarved means the run ended without anyone calling Stop.
//	}
//
// # Termination
//
// Run returns once Stop has been requested, a process fails, the context is
// cancelled, or no activity remains (ErrStarved). Processes still suspended
// at that point are unwound one at a time: their deferred calls run with
// Done() already closed and IsRunning() false.
package sim
