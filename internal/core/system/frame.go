package system

import "time"

const (
	frameWindow = 60
	// durations above maxFrameDuration, like the first frames or a stall in
	// a debugger, are reported as idealFrameDuration
	maxFrameDuration   = 500 * time.Millisecond
	idealFrameDuration = time.Second / 60
)

// Frame is the timing of one frame.
type Frame struct {
	Number uint64
	Prev   time.Duration // since the previous frame
	Avg    time.Duration // moving average over the last frames
}

func (f Frame) PrevSeconds() float32 { return float32(f.Prev.Seconds()) }
func (f Frame) AvgSeconds() float32  { return float32(f.Avg.Seconds()) }

func (f Frame) AvgFPS() float64 {
	if f.Avg <= 0 {
		return 0
	}
	return float64(time.Second) / float64(f.Avg)
}

// FrameCalculator stamps frames with a moving-average duration.
type FrameCalculator struct {
	number   uint64
	instants [frameWindow]time.Time
	now      func() time.Time
}

func NewFrameCalculator() *FrameCalculator {
	return newFrameCalculator(time.Now)
}

func newFrameCalculator(now func() time.Time) *FrameCalculator {
	c := &FrameCalculator{now: now}
	start := now()
	for i := range c.instants {
		c.instants[i] = start
	}
	return c
}

// Next records the current instant and returns the new frame.
func (c *FrameCalculator) Next() Frame {
	current := c.number % frameWindow
	prev := (c.number + frameWindow - 1) % frameWindow
	oldest := (c.number + 1) % frameWindow

	c.instants[current] = c.now()
	c.number++

	f := Frame{
		Number: c.number,
		Prev:   c.instants[current].Sub(c.instants[prev]),
		Avg:    c.instants[current].Sub(c.instants[oldest]) / frameWindow,
	}
	if f.Prev > maxFrameDuration || f.Prev <= 0 {
		f.Prev = idealFrameDuration
	}
	if f.Avg > maxFrameDuration || f.Avg <= 0 {
		f.Avg = idealFrameDuration
	}
	return f
}
