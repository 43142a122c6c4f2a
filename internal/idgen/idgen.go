// Package idgen provides the opaque identifiers and monotonic clock shared
// by the registry, engine, and protocol adapter.
package idgen

import (
	"time"

	"github.com/google/uuid"
)

// New returns a fresh opaque 128-bit identifier.
func New() uuid.UUID {
	return uuid.New()
}

// Clock abstracts wall-clock reads so round timing is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
