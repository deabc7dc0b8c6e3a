package async

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Request is a handle on one blocking call running in its own goroutine. The
// call's context is cancelled by Cancel or when the parent context ends.
type Request[T any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	started time.Time

	mu  sync.Mutex
	val T
	err error
}

// Start runs fn in the background and returns immediately.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Request[T] {
	cctx, cancel := context.WithCancel(ctx)
	r := &Request[T]{done: make(chan struct{}), cancel: cancel, started: time.Now()}
	go func() {
		defer close(r.done)
		defer cancel()
		var (
			val T
			err error
		)
		func() {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("request panicked: %v", p)
				}
			}()
			val, err = fn(cctx)
		}()
		r.mu.Lock()
		r.val, r.err = val, err
		r.mu.Unlock()
	}()
	return r
}

// Done is closed once the call has returned.
func (r *Request[T]) Done() <-chan struct{} { return r.done }

// Cancel asks the call to stop. It does not wait.
func (r *Request[T]) Cancel() { r.cancel() }

// Elapsed is the time since Start.
func (r *Request[T]) Elapsed() time.Duration { return time.Since(r.started) }

// Wait blocks until the call returns or ctx ends. Giving up on ctx leaves the
// call running; use Cancel to stop it.
func (r *Request[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Do starts fn and waits for it on the same context.
func Do[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return Start(ctx, fn).Wait(ctx)
}
