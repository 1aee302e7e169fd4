package input

import "time"

const (
	DefaultRestartHold = 5 * time.Second
	DefaultCrashHold   = 5 * time.Second
)

// State is one frame of input.
type State struct {
	Mouse    Mouse
	Keyboard Keyboard
	Gamepad  Gamepad
	General  General

	// Restart and Crash fire after F4 and F1 are held for their duration.
	Restart ManualTimer
	Crash   ManualTimer

	WindowResized *[2]uint32
}

func NewState(restartHold, crashHold time.Duration) *State {
	return &State{
		Gamepad: NewGamepad(),
		General: NewGeneral(),
		Restart: NewManualTimer(KeyF4, restartHold),
		Crash:   NewManualTimer(KeyF1, crashHold),
	}
}

// PreEvents starts a frame before the window events are applied.
func (s *State) PreEvents() {
	s.Mouse.PreEvents()
	s.Keyboard.PreEvents()
	s.WindowResized = nil
}

// Signal is what the manual timers ask of the game loop.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalRestart
	SignalCrash
)

// PostEvents folds the applied events into button state and advances the
// manual timers. A crash wins over a restart.
func (s *State) PostEvents(now time.Time) Signal {
	s.Mouse.PostEvents()
	s.Keyboard.PostEvents()
	s.Gamepad.PostEvents()
	s.General.Update(&s.Mouse.Buttons, &s.Keyboard.Buttons, &s.Gamepad.Buttons)

	crash := s.Crash.Update(&s.Keyboard.Keys, now)
	restart := s.Restart.Update(&s.Keyboard.Keys, now)
	switch {
	case crash:
		return SignalCrash
	case restart:
		return SignalRestart
	}
	return SignalNone
}
