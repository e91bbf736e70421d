package ipcsem

import "context"

// Semaphore - capability set shared by every cross-process semaphore backend.
type Semaphore interface {
	// Acquire blocks until a permit is available and consumes it.
	Acquire() error
	// AcquireContext is Acquire that gives up when ctx is done.
	AcquireContext(ctx context.Context) error
	// TryAcquire consumes a permit if one is available, without waiting.
	TryAcquire() (bool, error)
	// Release produces one permit.
	Release() error
	// Close releases process-local resources. The shared object survives.
	Close() error
}
