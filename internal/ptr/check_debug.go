//go:build !release

package ptr

import (
	"fmt"
	"math"
	"runtime/debug"
	"sync/atomic"
)

// Checked reports whether borrow and liveness checks are compiled in.
const Checked = true

const refsDropped = math.MaxInt64

// borrowState counts borrows: >0 shared, -1 exclusive, refsDropped after Retire.
type borrowState struct {
	refs atomic.Int64
}

func (s *borrowState) acquireShared() {
	for {
		refs := s.refs.Load()
		switch {
		case refs == refsDropped:
			violation("ArefCell: attempted to borrow a dropped cell")
		case refs < 0:
			violation("ArefCell: attempted to borrow while it is mutably borrowed")
		}
		if s.refs.CompareAndSwap(refs, refs+1) {
			return
		}
	}
}

func (s *borrowState) releaseShared() {
	s.refs.Add(-1)
}

func (s *borrowState) acquireExclusive() {
	if s.refs.CompareAndSwap(0, -1) {
		return
	}
	switch refs := s.refs.Load(); {
	case refs == refsDropped:
		violation("ArefCell: attempted to mutably borrow a dropped cell")
	case refs < 0:
		violation("ArefCell: attempted to mutably borrow while it is already mutably borrowed")
	default:
		violation(fmt.Sprintf("ArefCell: attempted to mutably borrow while it is borrowed %d times", refs))
	}
}

func (s *borrowState) tryAcquireExclusive() bool {
	if s.refs.CompareAndSwap(0, -1) {
		return true
	}
	if s.refs.Load() == refsDropped {
		violation("ArefCell: attempted to mutably borrow a dropped cell")
	}
	return false
}

func (s *borrowState) releaseExclusive() {
	s.refs.Store(0)
}

func (s *borrowState) retire() {
	if s.refs.CompareAndSwap(0, refsDropped) {
		return
	}
	violation(fmt.Sprintf("ArefCell: dropped while borrowed (refs: %d)", s.refs.Load()))
}

func violation(msg string) {
	panic(fmt.Sprintf("%s\n\n%s", msg, debug.Stack()))
}
