package jobs

import "sync"

// Lock acquires mu, running pending jobs while it is contended.
func Lock(w *Worker, mu *sync.Mutex) {
	for !mu.TryLock() {
		w.RunPendingJob()
	}
}

// LockRead acquires a read lock on mu, running pending jobs while a writer holds it.
func LockRead(w *Worker, mu *sync.RWMutex) {
	for !mu.TryRLock() {
		w.RunPendingJob()
	}
}

// LockWrite acquires the write lock on mu, running pending jobs while it is held.
func LockWrite(w *Worker, mu *sync.RWMutex) {
	for !mu.TryLock() {
		w.RunPendingJob()
	}
}
