// Package lease hands out short-lived exclusive leases on string keys. The
// orphan sweep takes one per learner so two sweepers never refund the same
// learner at the same time.
package lease

import (
	"context"
	"time"
)

// Locker acquires a lease on key for ttl. ok is false when another holder
// has it. release gives the lease back early; it is safe to call after the
// lease has expired.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
