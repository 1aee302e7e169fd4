package jobs

import (
	"errors"
	"sync/atomic"
	"time"
)

var ErrTimeout = errors.New("job future timed out")

// Future resolves to the value of a submitted job. Everything the job wrote
// before returning is visible once Poll reports ready.
type Future[T any] struct {
	ready atomic.Bool
	value T
}

// Ready returns an already resolved future.
func Ready[T any](value T) *Future[T] {
	f := &Future[T]{}
	f.set(value)
	return f
}

func (f *Future[T]) set(value T) {
	f.value = value
	f.ready.Store(true)
}

// Poll returns the value without blocking.
func (f *Future[T]) Poll() (T, bool) {
	if f.ready.Load() {
		return f.value, true
	}
	var zero T
	return zero, false
}

// Wait runs other jobs on w until the future resolves.
func (f *Future[T]) Wait(w *Worker) T {
	for {
		if v, ok := f.Poll(); ok {
			return v
		}
		w.RunPendingJob()
	}
}

// WaitTimeout is Wait bounded by d. On expiry it returns ErrTimeout and the
// future stays usable.
func (f *Future[T]) WaitTimeout(w *Worker, d time.Duration) (T, error) {
	deadline := time.Now().Add(d)
	for {
		if v, ok := f.Poll(); ok {
			return v, nil
		}
		if time.Now().After(deadline) {
			var zero T
			return zero, ErrTimeout
		}
		w.RunPendingJob()
	}
}
