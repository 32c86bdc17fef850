package sim

import (
	"container/heap"
	"time"
)

type (
	// timedItem is a pending timeout for a process or a timed event
	// notification.
	timedItem struct {
		at    time.Duration
		seq   uint64
		index int
		proc  *Proc
		event *Event
	}

	// timedQueue orders timed items by time, then by scheduling order.
	timedQueue struct {
		items []*timedItem
	}
)

func (it *timedItem) fire() {
	if it.proc != nil {
		it.proc.timeout()
		return
	}
	it.event.trigger()
}

// Len returns the number of pending items.
func (q *timedQueue) Len() int {
	return len(q.items)
}

// Less reports whether item i fires before item j.
func (q *timedQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

// Swap exchanges the items at the provided indexes.
func (q *timedQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

// Push adds an item to the underlying heap implementation.
func (q *timedQueue) Push(x any) {
	it := x.(*timedItem)
	it.index = len(q.items)
	q.items = append(q.items, it)
}

// Pop removes an item from the underlying heap implementation.
func (q *timedQueue) Pop() any {
	old := q.items
	n := len(old)
	if n == 0 {
		return nil
	}
	it := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	it.index = -1
	return it
}

func (q *timedQueue) peek() *timedItem {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *timedQueue) insert(it *timedItem) {
	heap.Push(q, it)
}

func (q *timedQueue) next() *timedItem {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*timedItem)
}

func (q *timedQueue) cancel(it *timedItem) {
	if it == nil || it.index < 0 || it.index >= len(q.items) || q.items[it.index] != it {
		return
	}
	heap.Remove(q, it.index)
}
