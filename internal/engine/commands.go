package engine

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

const DefaultCommandCapacity = 256

var ErrCommandQueueFull = errors.New("command queue full")

// Command mutates the god state on the frame goroutine.
type Command func(g *GodState) error

// CommandQueue carries mutations from scripts, jobs and tools to the god
// state. Any goroutine may push; only the frame loop drains.
type CommandQueue struct {
	ch chan Command
}

func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = DefaultCommandCapacity
	}
	return &CommandQueue{ch: make(chan Command, capacity)}
}

// Push queues c without blocking.
func (q *CommandQueue) Push(c Command) error {
	if c == nil {
		return errors.New("push command: nil command")
	}
	select {
	case q.ch <- c:
		return nil
	default:
		return fmt.Errorf("push command: %w (capacity %d)", ErrCommandQueueFull, cap(q.ch))
	}
}

func (q *CommandQueue) Len() int { return len(q.ch) }

// Drain applies the commands queued when it was called. Commands pushed
// while draining wait for the next frame. Every command runs; the errors
// are combined.
func (q *CommandQueue) Drain(g *GodState) (int, error) {
	n := len(q.ch)
	var errs error
	for range n {
		c := <-q.ch
		if err := c(g); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return n, errs
}
