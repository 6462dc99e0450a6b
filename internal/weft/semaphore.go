package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import "context"

// Semaphore wraps an action so that no more than n invocations are inside
// it concurrently. NewSemaphore(0) and NoneSemaphore() both yield the
// identity wrapper, so callers never need to branch on which constructor
// was used.
type Semaphore interface {
	// WithToken holds a token for the duration of action and returns its
	// result. Cancellation of ctx while waiting for a token returns ctx.Err()
	// without running action; a token held when ctx is canceled mid-action
	// is still released on return.
	WithToken(ctx context.Context, action func() error) error
}

type noneSemaphore struct{}

func (noneSemaphore) WithToken(ctx context.Context, action func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return action()
}

// NoneSemaphore returns a Semaphore with no concurrency bound: WithToken is
// the identity wrapper.
func NoneSemaphore() Semaphore { return noneSemaphore{} }

// boundedSemaphore is a FIFO-fair bounded semaphore backed by a buffered
// channel of tokens.
type boundedSemaphore struct {
	tokens chan struct{}
}

// BoundedSemaphore returns a Semaphore admitting at most n concurrent
// holders. n must be >= 1; callers should route n == 0 to NoneSemaphore
// instead, per the "n=0 aliases to none()" input convention.
func BoundedSemaphore(n int) Semaphore {
	if n < 1 {
		panic("weft: BoundedSemaphore requires n >= 1")
	}
	s := &boundedSemaphore{tokens: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

func (s *boundedSemaphore) WithToken(ctx context.Context, action func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.tokens:
	}
	defer func() { s.tokens <- struct{}{} }()
	return action()
}

// NewSemaphore is the single entry point the rest of the engine uses to
// build a Semaphore from the CLI's --async[=N] value: n <= 0 means
// unbounded, n >= 1 means bounded(n).
func NewSemaphore(n int) Semaphore {
	if n <= 0 {
		return NoneSemaphore()
	}
	return BoundedSemaphore(n)
}
