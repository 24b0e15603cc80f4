// Package lock serialises work on a named resource, such as all approvals for
// one room.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires an exclusive lock on key. The returned func releases it and
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
