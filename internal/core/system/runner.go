package system

import (
	"fmt"
	"sort"
)

// Runner executes systems in phase order each frame.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 4),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once. Every system runs even when an earlier one
// asks to quit; the merged state is returned. The first error aborts the
// frame.
func (r *Runner) Tick(frame Frame) (State, error) {
	r.ensureSorted()
	state := Continue
	for _, s := range r.systems {
		st, err := s.Run(frame)
		if err != nil {
			return state, fmt.Errorf("%s phase: %w", s.Phase(), err)
		}
		state = state.Merge(st)
	}
	return state, nil
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
