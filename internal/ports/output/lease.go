package output

import "context"

// Lease grants the scheduler loop exclusive firing rights across processes.
type Lease interface {
	// Acquire takes the lease or extends it when already held. It reports whether
	// this process holds the lease afterwards.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
