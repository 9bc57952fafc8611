package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across replicas. The session
// manager uses it in addition to its in-process locks.
type DistributedLocker interface {
	// Lock acquires a lock for the given key, blocking until acquired or
	// the context is canceled. The returned UnlockFunc MUST be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
