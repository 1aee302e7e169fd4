// Package ptr provides the engine's shared-ownership primitives: a borrow
// checked interior-mutable cell and a single-owner pointer with weak
// observers. The borrow checks are compiled out with the "release" build tag.
package ptr

// ArefCell holds a value that may be borrowed shared any number of times or
// exclusively once. Violations panic with a stack trace unless the package is
// built with the "release" tag, in which case the caller must uphold the
// contract.
type ArefCell[T any] struct {
	value T
	state borrowState
}

func NewArefCell[T any](value T) *ArefCell[T] {
	return &ArefCell[T]{value: value}
}

// Borrow acquires a shared borrow. Release it when done.
func (c *ArefCell[T]) Borrow() *Aref[T] {
	c.state.acquireShared()
	return &Aref[T]{cell: c}
}

// BorrowMut acquires the exclusive borrow. Release it when done.
func (c *ArefCell[T]) BorrowMut() *ArefMut[T] {
	c.state.acquireExclusive()
	return &ArefMut[T]{cell: c}
}

// TryBorrowMut acquires the exclusive borrow only when the cell is not
// borrowed at all. It reports false instead of panicking otherwise.
func (c *ArefCell[T]) TryBorrowMut() (*ArefMut[T], bool) {
	if !c.state.tryAcquireExclusive() {
		return nil, false
	}
	return &ArefMut[T]{cell: c}, true
}

// Retire marks the cell as dropped. Any later borrow is a violation, as is
// retiring a cell that is still borrowed.
func (c *ArefCell[T]) Retire() {
	c.state.retire()
}

// Aref is a live shared borrow.
type Aref[T any] struct {
	cell     *ArefCell[T]
	released bool
}

// Get returns the borrowed value. It must not be written through.
func (a *Aref[T]) Get() *T {
	if a.released {
		violation("Aref: use after release")
	}
	return &a.cell.value
}

func (a *Aref[T]) Release() {
	if a.released {
		return
	}
	a.released = true
	a.cell.state.releaseShared()
}

// ArefMut is the live exclusive borrow.
type ArefMut[T any] struct {
	cell     *ArefCell[T]
	released bool
}

func (a *ArefMut[T]) Get() *T {
	if a.released {
		violation("ArefMut: use after release")
	}
	return &a.cell.value
}

func (a *ArefMut[T]) Release() {
	if a.released {
		return
	}
	a.released = true
	a.cell.state.releaseExclusive()
}
