// Package event carries window and device events from the window source to
// the input frame.
package event

import "github.com/risengine/ris/internal/input"

type Quit struct{}

type WindowResized struct {
	Width  uint32
	Height uint32
}

type Key struct {
	Key     input.Key
	Pressed bool
}

type MouseMotion struct {
	X, Y       int32
	XRel, YRel int32
}

type MouseWheel struct {
	X, Y int32
}

type MouseButton struct {
	Button  uint8
	Pressed bool
}

type ControllerAdded struct {
	Which uint32
}

type ControllerRemoved struct {
	Which uint32
}

type ControllerButton struct {
	Which   uint32
	Button  input.GamepadButton
	Pressed bool
}

type ControllerAxis struct {
	Which uint32
	Axis  input.GamepadAxis
	Value int16
}

// SourceChanged reports a change below the asset source directory.
type SourceChanged struct {
	Path string
}
