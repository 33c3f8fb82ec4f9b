package dispatch

import "context"

// Pool bounds the number of concurrent blocking store calls in flight,
// grounded on the teacher's pre-allocated sync.Pool idiom in
// session/hub.go (WriteBufferPool) — a fixed-size resource the hot path
// acquires and releases rather than allocating per call. Here the
// resource is a concurrency slot, not a buffer.
type Pool struct {
	sem chan struct{}
}

// NewPool returns a Pool admitting at most size concurrent Run calls.
// size <= 0 falls back to a single-slot pool.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Run executes fn once a slot is available, releasing it on return. It
// respects ctx cancellation while waiting for a slot.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()
	return fn()
}
