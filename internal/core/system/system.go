// Package system runs the frame phases in order and tracks frame timing.
package system

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseInput  Phase = iota // 0: poll window events, update devices
	PhaseLogic               // 1: scripts, camera, command queue
	PhaseOutput              // 2: record and submit GPU work
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseLogic:
		return "logic"
	case PhaseOutput:
		return "output"
	}
	return "unknown"
}

// State is what a phase asks of the game loop.
type State int

const (
	Continue State = iota
	WantsToRestart
	WantsToQuit
)

func (s State) String() string {
	switch s {
	case Continue:
		return "continue"
	case WantsToRestart:
		return "wants to restart"
	case WantsToQuit:
		return "wants to quit"
	}
	return "unknown"
}

// Merge keeps the stronger request: quitting beats restarting beats
// continuing.
func (s State) Merge(o State) State {
	return max(s, o)
}

// System is one step of a frame.
type System interface {
	Phase() Phase
	Run(frame Frame) (State, error)
}
