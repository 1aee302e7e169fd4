package event

import "sync"

// Source feeds a bus once per frame.
type Source interface {
	Poll(b *Bus)
}

// Queue is a Source that other goroutines push events into, for example a
// file watcher or a signal handler.
type Queue struct {
	mu      sync.Mutex
	pending []func(*Bus)
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push queues ev for the next Poll.
func Push[T any](q *Queue, ev T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, func(b *Bus) { Emit(b, ev) })
}

func (q *Queue) Poll(b *Bus) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, emit := range pending {
		emit(b)
	}
}

// Sources polls several sources in order.
type Sources []Source

func (s Sources) Poll(b *Bus) {
	for _, src := range s {
		src.Poll(b)
	}
}
