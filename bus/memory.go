package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus implements MessageBus using in-memory channels.
type MemoryBus struct {
	config Config

	mu      sync.RWMutex
	subs    []*memorySub
	closed  atomic.Bool
	quit    chan struct{}
	dropped atomic.Uint64
}

type memorySub struct {
	pattern string
	ch      chan *Message
	closed  atomic.Bool
	done    chan struct{}
	stop    sync.Once
	bus     *MemoryBus
}

var _ MessageBus = (*MemoryBus)(nil)

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &MemoryBus{
		config: cfg,
		quit:   make(chan struct{}),
	}
}

// Publish sends a message to all matching subscribers.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	msg := &Message{
		Subject: subject,
		Data:    data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.closed.Load() || !Match(sub.pattern, subject) {
			continue
		}
		if b.config.Blocking {
			select {
			case sub.ch <- msg:
			case <-sub.done:
			case <-b.quit:
			}
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Buffer full, drop message
			b.dropped.Add(1)
		}
	}
	return nil
}

// Dropped returns how many deliveries were lost to full buffers.
func (b *MemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe creates a subscription to a subject pattern.
func (b *MemoryBus) Subscribe(pattern string) (Subscription, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		pattern: pattern,
		ch:      make(chan *Message, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Close shuts down the bus.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	close(b.quit)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	b.subs = nil

	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	// Release a blocked publisher before taking the lock it holds.
	s.stop.Do(func() { close(s.done) })

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}

	subs := s.bus.subs
	for i, sub := range subs {
		if sub == s {
			s.bus.subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}

	close(s.ch)
	return nil
}
