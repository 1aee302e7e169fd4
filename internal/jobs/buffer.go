package jobs

import (
	"errors"
	"sync"
)

var (
	ErrBlockedOrEmpty = errors.New("job buffer blocked or empty")
	ErrBufferFull     = errors.New("job buffer full")
)

// Job is a once-callable unit of work. It receives the worker running it so
// it can submit further jobs.
type Job func(w *Worker)

// Buffer is a bounded double-ended job queue. The owning worker pushes and pops
// at the bottom, thieves take from the top. Pop and Steal never wait for the
// lock: contention is reported as ErrBlockedOrEmpty.
type Buffer struct {
	mu    sync.Mutex
	jobs  []Job
	top   int
	count int
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{jobs: make([]Job, capacity)}
}

// Push appends a job at the bottom. A full buffer hands the job back via
// ErrBufferFull so the caller can run it inline.
func (b *Buffer) Push(job Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.jobs) {
		return ErrBufferFull
	}
	b.jobs[(b.top+b.count)%len(b.jobs)] = job
	b.count++
	return nil
}

// Pop takes the most recently pushed job.
func (b *Buffer) Pop() (Job, error) {
	if !b.mu.TryLock() {
		return nil, ErrBlockedOrEmpty
	}
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil, ErrBlockedOrEmpty
	}
	b.count--
	i := (b.top + b.count) % len(b.jobs)
	job := b.jobs[i]
	b.jobs[i] = nil
	return job, nil
}

// Steal takes the oldest job.
func (b *Buffer) Steal() (Job, error) {
	if !b.mu.TryLock() {
		return nil, ErrBlockedOrEmpty
	}
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil, ErrBlockedOrEmpty
	}
	job := b.jobs[b.top]
	b.jobs[b.top] = nil
	b.top = (b.top + 1) % len(b.jobs)
	b.count--
	return job, nil
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Buffer) Cap() int {
	return len(b.jobs)
}
