package objection

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Token is the handle for one raised objection. It must be released exactly
// once, normally with defer right after Raise.
type Token struct {
	r        *Registry
	name     string
	id       uuid.UUID
	released atomic.Bool
}

// Name returns the objection name.
func (t *Token) Name() string {
	return t.name
}

// ID returns the token's unique identifier.
func (t *Token) ID() string {
	return t.id.String()
}

// Released reports whether Release has been called.
func (t *Token) Released() bool {
	return t.released.Load()
}

// Release drops the objection. A second call returns an UNKNOWN_TOKEN error
// and leaves the registry untouched.
func (t *Token) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return t.r.unknownToken(t, "token already released")
	}
	return t.r.release(t)
}
