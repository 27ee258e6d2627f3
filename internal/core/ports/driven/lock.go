package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates exclusive work across instances, keyed by
// name. Locks expire on their own; holders extend them while working.
type DistributedLock interface {
	// Acquire attempts to take the named lock for ttl. Returns false
	// when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases the named lock if held by this instance.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a lock this instance holds.
	Extend(ctx context.Context, name string, ttl time.Duration) error
}
