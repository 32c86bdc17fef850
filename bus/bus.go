package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Message represents a message received from the bus.
type Message struct {
	// Subject the message was published to.
	Subject string

	// Data is the message payload.
	Data []byte
}

// MessageBus provides non-blocking pub/sub messaging.
type MessageBus interface {
	// Publish sends a message to all subscribers whose pattern matches the
	// subject. It never blocks.
	Publish(subject string, data []byte) error

	// Subscribe creates a subscription to a subject pattern.
	// All matching subscribers receive all messages.
	Subscribe(pattern string) (Subscription, error)

	// Close shuts down the bus and closes every subscription channel.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// Channel is closed when subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int

	// Blocking makes Publish wait for room in a full subscription instead
	// of dropping the message. Subscribers must keep reading until they
	// unsubscribe.
	Blocking bool
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks that a published subject is non-empty, has no
// empty tokens, and contains no wildcards.
func ValidateSubject(subject string) error {
	if subject == "" {
		return ErrInvalidSubject
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "" || tok == "*" || tok == ">" {
			return ErrInvalidSubject
		}
	}
	return nil
}

// ValidatePattern checks a subscription pattern. ">" may only appear as the
// last token.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrInvalidSubject
	}
	toks := strings.Split(pattern, ".")
	for i, tok := range toks {
		if tok == "" {
			return ErrInvalidSubject
		}
		if tok == ">" && i != len(toks)-1 {
			return ErrInvalidSubject
		}
	}
	return nil
}

// Match reports whether subject matches pattern.
func Match(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
