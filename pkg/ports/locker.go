package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes renders of one conversation across replicas
// sharing a session store.
type DistributedLocker interface {
	// Lock blocks until key (a session id) is held or ctx is done. The lock
	// expires after ttl if its holder dies. The returned UnlockFunc must be
	// called once the session has been saved.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
