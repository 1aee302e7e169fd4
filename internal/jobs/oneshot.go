package jobs

import (
	"errors"
	"sync/atomic"
)

var ErrSenderDropped = errors.New("oneshot sender closed without sending")

const (
	oneshotEmpty int32 = iota
	oneshotReady
	oneshotClosed
)

type oneshot[T any] struct {
	claimed atomic.Bool
	state   atomic.Int32
	value   T
}

type OneshotSender[T any] struct {
	c *oneshot[T]
}

type OneshotReceiver[T any] struct {
	c *oneshot[T]
}

// NewOneshot returns the two ends of a single-value channel.
func NewOneshot[T any]() (*OneshotSender[T], *OneshotReceiver[T]) {
	c := &oneshot[T]{}
	return &OneshotSender[T]{c: c}, &OneshotReceiver[T]{c: c}
}

// Send delivers value. Only the first Send or Close has an effect.
func (s *OneshotSender[T]) Send(value T) bool {
	if !s.c.claimed.CompareAndSwap(false, true) {
		return false
	}
	s.c.value = value
	s.c.state.Store(oneshotReady)
	return true
}

// Close gives up sending. A waiting receiver gets ErrSenderDropped.
func (s *OneshotSender[T]) Close() {
	if s.c.claimed.CompareAndSwap(false, true) {
		s.c.state.Store(oneshotClosed)
	}
}

// Receive returns the value if it has arrived.
func (r *OneshotReceiver[T]) Receive() (T, bool) {
	if r.c.state.Load() == oneshotReady {
		return r.c.value, true
	}
	var zero T
	return zero, false
}

// Wait runs other jobs on w until the value arrives or the sender closes.
func (r *OneshotReceiver[T]) Wait(w *Worker) (T, error) {
	for {
		switch r.c.state.Load() {
		case oneshotReady:
			return r.c.value, nil
		case oneshotClosed:
			var zero T
			return zero, ErrSenderDropped
		}
		w.RunPendingJob()
	}
}
