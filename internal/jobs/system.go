// Package jobs implements the engine's work-stealing job system: a fixed pool
// of workers, each owning a bounded job buffer, cooperating through futures
// and yielding locks that run other jobs instead of parking.
package jobs

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var ErrAlreadyInitialized = errors.New("job system already initialized")

// only one System may be live per process
var initialized atomic.Bool

type Config struct {
	Workers        int // 0 means runtime.NumCPU()
	BufferCapacity int
}

// System owns the worker pool. Close signals termination, drains the caller's
// buffer and joins the workers.
type System struct {
	log        *zap.Logger
	restoreLog func()
	workers    []*Worker
	done       atomic.Bool
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// Worker is the per-goroutine view of the pool: its own buffer plus access to
// every peer for stealing. A Worker must only be used by one goroutine at a time.
type Worker struct {
	index  int
	sys    *System
	local  *Buffer
	cursor int
}

// Init starts cfg.Workers workers. Worker 0 is returned to the caller and is
// never run by a pool goroutine; the other workers get their own goroutines.
// Until Close, log is also installed as the global zap logger, which is where
// work handed to a nil worker is reported.
func Init(cfg Config, log *zap.Logger) (*System, *Worker, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BufferCapacity <= 0 {
		return nil, nil, fmt.Errorf("init job system: buffer capacity must be positive, got %d", cfg.BufferCapacity)
	}
	if !initialized.CompareAndSwap(false, true) {
		return nil, nil, ErrAlreadyInitialized
	}

	s := &System{
		log:        log,
		restoreLog: zap.ReplaceGlobals(log),
		workers:    make([]*Worker, cfg.Workers),
	}
	for i := range s.workers {
		s.workers[i] = &Worker{
			index: i,
			sys:   s,
			local: NewBuffer(cfg.BufferCapacity),
		}
	}
	for _, w := range s.workers[1:] {
		s.wg.Add(1)
		go s.work(w)
	}

	log.Info("job system started",
		zap.Int("workers", cfg.Workers),
		zap.Int("buffer_capacity", cfg.BufferCapacity))
	return s, s.workers[0], nil
}

func (s *System) work(w *Worker) {
	defer s.wg.Done()
	for !s.done.Load() {
		w.RunPendingJob()
	}
	w.drain()
}

// Close terminates the pool. Every job that was successfully submitted runs
// before Close returns.
func (s *System) Close() {
	s.closeOnce.Do(func() {
		s.done.Store(true)
		s.workers[0].drain()
		s.wg.Wait()
		// a job run during the final drain may have pushed to worker 0
		s.workers[0].drain()
		s.log.Info("job system stopped")
		s.restoreLog()
		initialized.Store(false)
	})
}

func (s *System) Workers() int {
	return len(s.workers)
}

// Done reports whether Close has been called.
func (s *System) Done() bool {
	return s.done.Load()
}

// Index returns the worker index, or -1 when called without a worker.
func (w *Worker) Index() int {
	if w == nil {
		return -1
	}
	return w.index
}

func (w *Worker) System() *System {
	if w == nil {
		return nil
	}
	return w.sys
}

// RunPendingJob runs one job: the newest from the local buffer, otherwise the
// oldest of the first peer that can be stolen from. With nothing to do it
// yields the goroutine.
func (w *Worker) RunPendingJob() {
	if w == nil {
		runtime.Gosched()
		return
	}
	if job, err := w.local.Pop(); err == nil {
		job(w)
		return
	}

	n := len(w.sys.workers)
	for range n {
		w.cursor = (w.cursor + 1) % n
		if w.cursor == w.index {
			continue
		}
		if job, err := w.sys.workers[w.cursor].local.Steal(); err == nil {
			job(w)
			return
		}
	}
	runtime.Gosched()
}

func (w *Worker) drain() {
	for {
		job, err := w.local.Pop()
		if err == nil {
			job(w)
			continue
		}
		if w.local.Len() == 0 {
			return
		}
		runtime.Gosched()
	}
}

// Submit schedules fn on w's buffer and returns its future. A full buffer runs
// fn inline before Submit returns. Without a worker the job is logged to the
// global logger and dropped; the returned future never resolves.
func Submit[T any](w *Worker, fn func(*Worker) T) *Future[T] {
	f := &Future[T]{}
	if w == nil {
		zap.L().Error("job submitted from outside the job system, dropping it")
		return f
	}

	job := func(w *Worker) {
		f.set(fn(w))
	}
	if w.sys.done.Load() {
		job(w)
		return f
	}
	if err := w.local.Push(job); err != nil {
		job(w)
	}
	return f
}
