package sim

// Fifo is a first-in first-out channel between processes. A capacity of
// zero or less makes it unbounded.
type Fifo[T any] struct {
	name     string
	capacity int
	items    []T
	written  *Event
	read     *Event
}

// NewFifo creates a fifo bound to k.
func NewFifo[T any](k *Kernel, name string, capacity int) *Fifo[T] {
	return &Fifo[T]{
		name:     name,
		capacity: capacity,
		written:  k.NewEvent(name + ".written"),
		read:     k.NewEvent(name + ".read"),
	}
}

// Name returns the fifo name.
func (f *Fifo[T]) Name() string {
	return f.name
}

// Len returns the number of queued items.
func (f *Fifo[T]) Len() int {
	return len(f.items)
}

// Put appends v, suspending p while the fifo is full.
func (f *Fifo[T]) Put(p *Proc, v T) {
	for f.full() {
		p.WaitEvent(f.read)
	}
	f.push(v)
}

// TryPut appends v if there is room and reports whether it did.
func (f *Fifo[T]) TryPut(v T) bool {
	if f.full() {
		return false
	}
	f.push(v)
	return true
}

// Get removes the oldest item, suspending p while the fifo is empty.
func (f *Fifo[T]) Get(p *Proc) T {
	for len(f.items) == 0 {
		p.WaitEvent(f.written)
	}
	return f.pop()
}

// TryGet removes the oldest item if there is one.
func (f *Fifo[T]) TryGet() (T, bool) {
	if len(f.items) == 0 {
		var zero T
		return zero, false
	}
	return f.pop(), true
}

// Written returns the event notified after every successful put.
func (f *Fifo[T]) Written() *Event {
	return f.written
}

func (f *Fifo[T]) full() bool {
	return f.capacity > 0 && len(f.items) >= f.capacity
}

func (f *Fifo[T]) push(v T) {
	f.items = append(f.items, v)
	f.written.Notify(0)
}

func (f *Fifo[T]) pop() T {
	var zero T
	v := f.items[0]
	f.items[0] = zero
	f.items = f.items[1:]
	f.read.Notify(0)
	return v
}

// Signal holds a single value and announces writes through an event.
type Signal[T comparable] struct {
	name    string
	value   T
	always  bool
	writes  uint64
	changed *Event
}

// NewSignal creates a signal that notifies only when the value changes.
func NewSignal[T comparable](k *Kernel, name string) *Signal[T] {
	return &Signal[T]{
		name:    name,
		changed: k.NewEvent(name + ".changed"),
	}
}

// NewBuffer creates a signal that notifies on every write, even when the
// value is unchanged.
func NewBuffer[T comparable](k *Kernel, name string) *Signal[T] {
	s := NewSignal[T](k, name)
	s.always = true
	return s
}

// Name returns the signal name.
func (s *Signal[T]) Name() string {
	return s.name
}

// Read returns the current value.
func (s *Signal[T]) Read() T {
	return s.value
}

// Write stores v and notifies waiters in the next delta cycle.
func (s *Signal[T]) Write(v T) {
	if !s.always && v == s.value {
		return
	}
	s.value = v
	s.writes++
	s.changed.Notify(0)
}

// Writes returns how many writes produced a notification.
func (s *Signal[T]) Writes() uint64 {
	return s.writes
}

// Changed returns the event notified by Write.
func (s *Signal[T]) Changed() *Event {
	return s.changed
}
