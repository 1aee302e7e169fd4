package system

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepSystem struct {
	phase Phase
	state State
	err   error
	log   *[]Phase
}

func (s *stepSystem) Phase() Phase { return s.phase }

func (s *stepSystem) Run(Frame) (State, error) {
	*s.log = append(*s.log, s.phase)
	return s.state, s.err
}

func TestRunnerOrdersPhases(t *testing.T) {
	var log []Phase
	r := NewRunner()
	r.Register(&stepSystem{phase: PhaseOutput, log: &log})
	r.Register(&stepSystem{phase: PhaseInput, state: WantsToQuit, log: &log})
	r.Register(&stepSystem{phase: PhaseLogic, state: WantsToRestart, log: &log})

	state, err := r.Tick(Frame{})
	require.NoError(t, err)
	assert.Equal(t, WantsToQuit, state)
	assert.Equal(t, []Phase{PhaseInput, PhaseLogic, PhaseOutput}, log)
}

func TestRunnerStopsOnError(t *testing.T) {
	var log []Phase
	boom := errors.New("boom")
	r := NewRunner()
	r.Register(&stepSystem{phase: PhaseLogic, err: boom, log: &log})
	r.Register(&stepSystem{phase: PhaseOutput, log: &log})

	_, err := r.Tick(Frame{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "logic phase")
	assert.Equal(t, []Phase{PhaseLogic}, log)
}

func TestStateMerge(t *testing.T) {
	assert.Equal(t, Continue, Continue.Merge(Continue))
	assert.Equal(t, WantsToRestart, WantsToRestart.Merge(Continue))
	assert.Equal(t, WantsToQuit, WantsToRestart.Merge(WantsToQuit))
}

func TestFrameCalculator(t *testing.T) {
	now := time.Unix(0, 0)
	c := newFrameCalculator(func() time.Time { return now })

	f := c.Next()
	assert.Equal(t, uint64(1), f.Number)
	assert.Equal(t, idealFrameDuration, f.Prev, "no previous frame yet")
	assert.Equal(t, idealFrameDuration, f.Avg)

	for range frameWindow {
		now = now.Add(10 * time.Millisecond)
		f = c.Next()
	}
	assert.Equal(t, uint64(frameWindow+1), f.Number)
	assert.Equal(t, 10*time.Millisecond, f.Prev)
	assert.Equal(t, 10*time.Millisecond*(frameWindow-1)/frameWindow, f.Avg)
	assert.InDelta(t, 100.0*frameWindow/(frameWindow-1), f.AvgFPS(), 1e-3)

	now = now.Add(time.Second)
	f = c.Next()
	assert.Equal(t, idealFrameDuration, f.Prev, "a stall is clamped")
}
