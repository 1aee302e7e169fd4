//go:build !release

package ptr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArefCellSharedBorrows(t *testing.T) {
	cell := NewArefCell(42)

	a := cell.Borrow()
	b := cell.Borrow()
	assert.Equal(t, 42, *a.Get())
	assert.Equal(t, 42, *b.Get())
	a.Release()
	b.Release()

	m := cell.BorrowMut()
	*m.Get() = 7
	m.Release()

	r := cell.Borrow()
	defer r.Release()
	assert.Equal(t, 7, *r.Get())
}

func TestArefCellSharedWhileExclusivePanics(t *testing.T) {
	cell := NewArefCell("value")
	m := cell.BorrowMut()
	defer m.Release()

	assert.Panics(t, func() { cell.Borrow() })
}

func TestArefCellExclusiveWhileSharedPanics(t *testing.T) {
	cell := NewArefCell("value")
	r := cell.Borrow()
	defer r.Release()

	assert.Panics(t, func() { cell.BorrowMut() })
}

func TestArefCellTwoExclusivePanics(t *testing.T) {
	cell := NewArefCell(1)
	m := cell.BorrowMut()
	defer m.Release()

	assert.Panics(t, func() { cell.BorrowMut() })
}

func TestArefCellViolationCarriesStack(t *testing.T) {
	cell := NewArefCell(1)
	m := cell.BorrowMut()
	defer m.Release()

	defer func() {
		msg, ok := recover().(string)
		assert.True(t, ok)
		assert.Contains(t, msg, "mutably borrowed")
		assert.Contains(t, msg, "goroutine")
	}()
	cell.Borrow()
}

func TestArefCellReleaseIsIdempotent(t *testing.T) {
	cell := NewArefCell(1)
	r := cell.Borrow()
	r.Release()
	r.Release()

	m := cell.BorrowMut()
	m.Release()
	m.Release()

	assert.NotPanics(t, func() { cell.BorrowMut().Release() })
	assert.Panics(t, func() { r.Get() })
}

func TestArefCellTryBorrowMut(t *testing.T) {
	cell := NewArefCell(1)
	r := cell.Borrow()
	_, ok := cell.TryBorrowMut()
	assert.False(t, ok, "shared borrow outstanding")
	r.Release()

	m, ok := cell.TryBorrowMut()
	assert.True(t, ok)
	*m.Get() = 2
	_, again := cell.TryBorrowMut()
	assert.False(t, again, "exclusive borrow outstanding")
	m.Release()

	b := cell.Borrow()
	assert.Equal(t, 2, *b.Get())
	b.Release()

	dropped := NewArefCell(1)
	dropped.Retire()
	assert.Panics(t, func() { dropped.TryBorrowMut() })
}

func TestArefCellRetire(t *testing.T) {
	cell := NewArefCell(1)
	cell.Retire()
	assert.Panics(t, func() { cell.Borrow() })
	assert.Panics(t, func() { cell.BorrowMut() })

	busy := NewArefCell(1)
	r := busy.Borrow()
	defer r.Release()
	assert.Panics(t, func() { busy.Retire() })
}

func TestArefCellConcurrentSharedBorrows(t *testing.T) {
	cell := NewArefCell(5)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r := cell.Borrow()
				_ = *r.Get()
				r.Release()
			}
		}()
	}
	wg.Wait()

	assert.NotPanics(t, func() { cell.BorrowMut().Release() })
}
