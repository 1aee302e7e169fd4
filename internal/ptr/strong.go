package ptr

import "sync/atomic"

type control[T any] struct {
	value  T
	owners atomic.Int32
	alive  atomic.Bool
}

// StrongPtr owns a heap value. Clones share ownership; when the last owner
// releases, the value is dropped and every WeakPtr becomes dangling.
//
// IsUnique reports whether this is the only remaining owner, which caches use
// as the signal that a resource may be reclaimed.
type StrongPtr[T any] struct {
	c        *control[T]
	released bool
}

func NewStrongPtr[T any](value T) *StrongPtr[T] {
	c := &control[T]{value: value}
	c.owners.Store(1)
	c.alive.Store(true)
	return &StrongPtr[T]{c: c}
}

func (p *StrongPtr[T]) Get() *T {
	if Checked && p.released {
		violation("StrongPtr: use after release")
	}
	return &p.c.value
}

// Clone adds an owner.
func (p *StrongPtr[T]) Clone() *StrongPtr[T] {
	if Checked && p.released {
		violation("StrongPtr: clone after release")
	}
	p.c.owners.Add(1)
	return &StrongPtr[T]{c: p.c}
}

func (p *StrongPtr[T]) IsUnique() bool {
	return p.c.owners.Load() == 1
}

// Release gives up this owner. Releasing twice is a no-op.
func (p *StrongPtr[T]) Release() {
	if p.released {
		return
	}
	p.released = true
	if p.c.owners.Add(-1) == 0 {
		p.c.alive.Store(false)
		var zero T
		p.c.value = zero
	}
}

func (p *StrongPtr[T]) ToWeak() WeakPtr[T] {
	return WeakPtr[T]{c: p.c}
}

// WeakPtr observes a StrongPtr without keeping it alive.
type WeakPtr[T any] struct {
	c *control[T]
}

// Get dereferences the pointer. Dereferencing a dangling WeakPtr panics in
// checked builds.
func (w WeakPtr[T]) Get() *T {
	if Checked && !w.c.alive.Load() {
		violation("WeakPtr: attempted to deref a dangling reference, StrongPtr has been dropped")
	}
	return &w.c.value
}

func (w WeakPtr[T]) IsAlive() bool {
	return w.c != nil && w.c.alive.Load()
}
