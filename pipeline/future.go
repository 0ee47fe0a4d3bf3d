package pipeline

import (
	"context"
	"sync"
)

// Future is a single-assignment result. Continuations registered with Then
// run in the goroutine that settles the future, or immediately when it is
// already settled, so waiting never needs a blocked worker.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	val       T
	err       error
	callbacks []func(T, error)
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already holding v.
func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v)
	return f
}

// Failed returns a future already holding err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Fail(err)
	return f
}

// Complete settles the future with v. It reports false when the future was
// already settled.
func (f *Future[T]) Complete(v T) bool {
	return f.settle(v, nil)
}

// Fail settles the future with err.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.val, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Then registers fn to run once the future settles.
func (f *Future[T]) Then(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	fn(v, err)
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// IsDone reports whether the future has settled.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value. It must only be called after Done.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// Wait blocks until the future settles or ctx ends. It is meant for callers
// outside the worker pool.
func (f *Future[T]) Wait(ctx context.Context) (v T, err error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return v, ctx.Err()
	}
}

// Map derives a future by applying fn to a successful result.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := NewFuture[U]()
	f.Then(func(v T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		u, err := fn(v)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Complete(u)
	})
	return out
}

// Compose chains an asynchronous step after f.
func Compose[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out := NewFuture[U]()
	f.Then(func(v T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		fn(v).Then(func(u U, err error) {
			if err != nil {
				out.Fail(err)
				return
			}
			out.Complete(u)
		})
	})
	return out
}

// All settles once every future has, failing with the first error seen.
func All[T any](futs ...*Future[T]) *Future[[]T] {
	out := NewFuture[[]T]()
	if len(futs) == 0 {
		out.Complete(nil)
		return out
	}
	vals := make([]T, len(futs))
	var (
		mu        sync.Mutex
		remaining = len(futs)
	)
	for i, f := range futs {
		i := i
		f.Then(func(v T, err error) {
			if err != nil {
				out.Fail(err)
				return
			}
			mu.Lock()
			vals[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Complete(vals)
			}
		})
	}
	return out
}
