package sim

import "time"

// Event is a notification point processes can wait on.
type Event struct {
	k       *Kernel
	name    string
	waiters []*Proc
	delta   bool
	timed   *timedItem
}

// Name returns the event name.
func (e *Event) Name() string {
	return e.name
}

// Waiting returns the number of processes currently waiting on the event.
func (e *Event) Waiting() int {
	return len(e.waiters)
}

// Pending reports whether a notification is scheduled.
func (e *Event) Pending() bool {
	return e.delta || e.timed != nil
}

// Notify schedules the event to trigger after delay; zero means the next
// delta cycle. If a notification is already pending, the earlier of the
// two is kept. Only processes waiting at trigger time are woken; if none
// are, the notification is lost.
func (e *Event) Notify(delay time.Duration) {
	k := e.k
	if k.finished() || e.delta {
		return
	}

	if delay <= 0 {
		if e.timed != nil {
			k.queue.cancel(e.timed)
			e.timed = nil
		}
		e.delta = true
		k.deltaEvents = append(k.deltaEvents, e)
		return
	}

	at := k.Now() + delay
	if e.timed != nil {
		if e.timed.at <= at {
			return
		}
		k.queue.cancel(e.timed)
	}
	e.timed = k.schedule(at, nil, e)
}

// Cancel drops any pending notification.
func (e *Event) Cancel() {
	if e.timed != nil {
		e.k.queue.cancel(e.timed)
		e.timed = nil
	}
	if e.delta {
		e.delta = false
		for i, d := range e.k.deltaEvents {
			if d == e {
				e.k.deltaEvents = append(e.k.deltaEvents[:i], e.k.deltaEvents[i+1:]...)
				break
			}
		}
	}
}

func (e *Event) trigger() {
	e.delta = false
	e.timed = nil

	waiters := e.waiters
	e.waiters = nil
	for _, p := range waiters {
		p.waiting = nil
		p.wake(true)
	}
}

func (e *Event) drop(p *Proc) {
	for i, w := range e.waiters {
		if w == p {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}
