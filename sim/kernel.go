package sim

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Common errors.
var (
	// ErrStarved indicates the run ended because no activity remained and
	// nobody requested a stop.
	ErrStarved = errors.New("simulation stopped without an explicit stop request")

	// ErrAlreadyRunning indicates Run was called on a kernel that has
	// already been started.
	ErrAlreadyRunning = errors.New("kernel already started")
)

type kernelState int32

const (
	stateIdle kernelState = iota
	stateRunning
	stateFinished
)

// ProcFunc is the body of a cooperative process. Returning a non-nil error
// aborts the whole run.
type ProcFunc func(p *Proc) error

// Kernel is a cooperative, single-baton discrete-event scheduler.
type Kernel struct {
	name string

	// Owned by whichever goroutine holds the baton.
	seq         uint64
	deltas      uint64
	queue       timedQueue
	runnable    []*Proc
	deltaProcs  []*Proc
	deltaEvents []*Event
	procs       []*Proc
	current     *Proc
	failure     error

	now     atomic.Int64
	stopAt  atomic.Int64
	state   atomic.Int32
	stopReq atomic.Bool

	yield chan struct{}
	done  chan struct{}
}

// NewKernel creates an idle kernel with its clock at zero.
func NewKernel(name string) *Kernel {
	return &Kernel{
		name:  name,
		yield: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Name returns the kernel name.
func (k *Kernel) Name() string {
	return k.name
}

// Now returns the current simulated time.
func (k *Kernel) Now() time.Duration {
	return time.Duration(k.now.Load())
}

// Deltas returns the number of delta cycles evaluated so far.
func (k *Kernel) Deltas() uint64 {
	return k.deltas
}

// IsRunning reports whether Run is in progress and no stop has been
// requested.
func (k *Kernel) IsRunning() bool {
	return kernelState(k.state.Load()) == stateRunning && !k.stopReq.Load()
}

// Stop requests termination. No further process is resumed once the
// request is seen. Safe to call from any goroutine and more than once.
func (k *Kernel) Stop() {
	if k.stopReq.CompareAndSwap(false, true) {
		k.stopAt.Store(k.now.Load())
	}
}

// Stopped reports whether a stop has been requested.
func (k *Kernel) Stopped() bool {
	return k.stopReq.Load()
}

// StopTime returns the simulated time at which Stop was first called.
func (k *Kernel) StopTime() (time.Duration, bool) {
	if !k.stopReq.Load() {
		return 0, false
	}
	return time.Duration(k.stopAt.Load()), true
}

// Done returns a channel that is closed when the run has ended.
func (k *Kernel) Done() <-chan struct{} {
	return k.done
}

// Spawn registers a process. Processes spawned before Run start at time
// zero; processes spawned from process context become runnable in the
// current evaluation phase. Spawning after the run ended has no effect.
func (k *Kernel) Spawn(name string, fn ProcFunc) *Proc {
	p := &Proc{
		k:      k,
		name:   name,
		fn:     fn,
		resume: make(chan struct{}),
	}
	if k.finished() {
		p.finished = true
		return p
	}
	k.procs = append(k.procs, p)
	k.runnable = append(k.runnable, p)
	go p.main()
	return p
}

// NewEvent creates an event bound to this kernel.
func (k *Kernel) NewEvent(name string) *Event {
	return &Event{k: k, name: name}
}

// Run evaluates processes until a stop is requested, a process fails, the
// context is cancelled, or nothing is left to do.
func (k *Kernel) Run(ctx context.Context) error {
	if !k.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		return ErrAlreadyRunning
	}

	err := k.loop(ctx)

	k.state.Store(int32(stateFinished))
	close(k.done)
	k.unwind()
	return err
}

func (k *Kernel) loop(ctx context.Context) error {
	for {
		if k.failure != nil {
			return k.failure
		}
		if k.stopReq.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("simulation interrupted at %v: %w", k.Now(), err)
		}

		if len(k.runnable) > 0 {
			p := k.runnable[0]
			k.runnable[0] = nil
			k.runnable = k.runnable[1:]
			k.resume(p)
			continue
		}
		if k.advanceDelta() {
			continue
		}
		if !k.advanceTime() {
			return ErrStarved
		}
	}
}

func (k *Kernel) resume(p *Proc) {
	k.current = p
	p.resume <- struct{}{}
	<-k.yield
	k.current = nil

	if p.finished && p.err != nil && k.failure == nil {
		k.failure = fmt.Errorf("process %s: %w", p.name, p.err)
	}
}

func (k *Kernel) advanceDelta() bool {
	if len(k.deltaProcs) == 0 && len(k.deltaEvents) == 0 {
		return false
	}
	k.deltas++

	procs := k.deltaProcs
	k.deltaProcs = nil
	k.runnable = append(k.runnable, procs...)

	events := k.deltaEvents
	k.deltaEvents = nil
	for _, e := range events {
		e.trigger()
	}
	return true
}

func (k *Kernel) advanceTime() bool {
	head := k.queue.peek()
	if head == nil {
		return false
	}
	at := head.at
	k.now.Store(int64(at))

	for {
		it := k.queue.peek()
		if it == nil || it.at != at {
			return true
		}
		k.queue.next().fire()
	}
}

// unwind resumes every suspended process once so its deferred calls run.
func (k *Kernel) unwind() {
	for _, p := range k.procs {
		if p.finished {
			continue
		}
		p.killed = true
		p.resume <- struct{}{}
		<-k.yield
	}
	k.runnable = nil
	k.deltaProcs = nil
	k.deltaEvents = nil
}

func (k *Kernel) schedule(at time.Duration, p *Proc, e *Event) *timedItem {
	k.seq++
	it := &timedItem{at: at, seq: k.seq, proc: p, event: e}
	k.queue.insert(it)
	return it
}

func (k *Kernel) finished() bool {
	return kernelState(k.state.Load()) == stateFinished
}
