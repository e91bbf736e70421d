package spin

// Option - options for configuring Semaphore.
type Option func(*options)

type options struct {
	initialPermits    int64
	hasInitialPermits bool
	backoff           Backoff
	destroy           func() error
}

// WithInitialPermits - permits the Owner stores at construction. Attachers must not set it.
func WithInitialPermits(n int64) Option {
	return func(o *options) {
		o.initialPermits = n
		o.hasInitialPermits = true
	}
}

// WithBackoff - configures the wait loop of Acquire.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithDestroyFunc - hook run by Destroy to tear down the backing resource,
// e.g. unlinking the shared memory segment.
func WithDestroyFunc(fn func() error) Option {
	return func(o *options) {
		o.destroy = fn
	}
}
