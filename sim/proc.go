package sim

import (
	"fmt"
	"time"
)

// Proc is a cooperative process. Its wait methods must only be called from
// the process's own body.
type Proc struct {
	k    *Kernel
	name string
	fn   ProcFunc

	resume   chan struct{}
	waiting  *Event
	timer    *timedItem
	fired    bool
	killed   bool
	finished bool
	err      error
}

// killed is raised inside a process being unwound after the run ended.
type killed struct{}

// Name returns the process name.
func (p *Proc) Name() string {
	return p.name
}

// Kernel returns the kernel the process belongs to.
func (p *Proc) Kernel() *Kernel {
	return p.k
}

// Now returns the current simulated time.
func (p *Proc) Now() time.Duration {
	return p.k.Now()
}

// Wait suspends the process for d. A non-positive d suspends until the
// next delta cycle.
func (p *Proc) Wait(d time.Duration) {
	p.enter()
	if d <= 0 {
		p.k.deltaProcs = append(p.k.deltaProcs, p)
	} else {
		p.timer = p.k.schedule(p.k.Now()+d, p, nil)
	}
	p.suspend()
}

// WaitEvent suspends the process until e triggers.
func (p *Proc) WaitEvent(e *Event) {
	p.enter()
	p.waitOn(e)
	p.suspend()
}

// WaitEventFor suspends the process until e triggers or d elapses,
// whichever comes first. It reports whether the event woke the process.
func (p *Proc) WaitEventFor(d time.Duration, e *Event) bool {
	p.enter()
	if d < 0 {
		d = 0
	}
	p.fired = false
	p.waitOn(e)
	p.timer = p.k.schedule(p.k.Now()+d, p, nil)
	p.suspend()
	return p.fired
}

func (p *Proc) enter() {
	if p.killed {
		panic(killed{})
	}
	if p.k.current != p {
		panic(fmt.Sprintf("sim: process %s suspended outside its own body", p.name))
	}
}

func (p *Proc) waitOn(e *Event) {
	if e.k != p.k {
		panic(fmt.Sprintf("sim: event %s belongs to another kernel", e.name))
	}
	p.waiting = e
	e.waiters = append(e.waiters, p)
}

func (p *Proc) suspend() {
	p.k.yield <- struct{}{}
	<-p.resume
	if p.killed {
		panic(killed{})
	}
}

func (p *Proc) wake(fired bool) {
	if p.timer != nil {
		p.k.queue.cancel(p.timer)
		p.timer = nil
	}
	if p.waiting != nil {
		p.waiting.drop(p)
		p.waiting = nil
	}
	p.fired = fired
	p.k.runnable = append(p.k.runnable, p)
}

func (p *Proc) timeout() {
	p.timer = nil
	p.wake(false)
}

func (p *Proc) main() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(killed); !ok {
				p.err = panicError(r)
			}
		}
		p.finished = true
		p.k.yield <- struct{}{}
	}()

	<-p.resume
	if p.killed {
		return
	}
	p.err = p.fn(p)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
