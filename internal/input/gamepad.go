package input

import (
	"math"
	"slices"
)

// GamepadButton is a controller button in the order of the low bits of
// Gamepad.Buttons.
type GamepadButton uint8

const (
	GamepadA GamepadButton = iota
	GamepadB
	GamepadX
	GamepadY
	GamepadBack
	GamepadGuide
	GamepadStart
	GamepadLeftStick
	GamepadRightStick
	GamepadLeftShoulder
	GamepadRightShoulder
	GamepadDPadUp
	GamepadDPadDown
	GamepadDPadLeft
	GamepadDPadRight

	gamepadButtonCount
)

type GamepadAxis uint8

const (
	AxisLeftX GamepadAxis = iota
	AxisLeftY
	AxisRightX
	AxisRightY
	AxisTriggerLeft
	AxisTriggerRight

	axisCount
)

// axisButton returns the button bit an axis sets when pushed past the
// threshold. Triggers only have a positive direction.
func axisButton(axis GamepadAxis, negative bool) uint {
	if axis >= AxisTriggerLeft {
		return 23 + uint(axis-AxisTriggerLeft)
	}
	bit := 15 + 2*uint(axis)
	if !negative {
		bit++
	}
	return bit
}

const (
	DefaultDeadzoneStick       int16 = 10_000
	DefaultDeadzoneTrigger     int16 = 1_000
	DefaultAxisButtonThreshold int16 = math.MaxInt16 / 2
)

type controller struct {
	id      uint32
	buttons uint32
	axis    [axisCount]int16
}

// Gamepad follows the controller that produced the latest event. Buttons
// 0 to 14 are the controller buttons, 15 to 24 are the axes pushed past
// AxisButtonThreshold.
type Gamepad struct {
	Buttons Buttons
	Axis    [axisCount]int16

	DeadzoneStick       int16
	DeadzoneTrigger     int16
	AxisButtonThreshold int16

	controllers []*controller
	current     int
}

func NewGamepad() Gamepad {
	return Gamepad{
		DeadzoneStick:       DefaultDeadzoneStick,
		DeadzoneTrigger:     DefaultDeadzoneTrigger,
		AxisButtonThreshold: DefaultAxisButtonThreshold,
		current:             -1,
	}
}

// Controllers is the number of attached controllers.
func (g *Gamepad) Controllers() int { return len(g.controllers) }

func (g *Gamepad) find(id uint32) int {
	return slices.IndexFunc(g.controllers, func(c *controller) bool { return c.id == id })
}

func (g *Gamepad) HandleAdded(id uint32) {
	if i := g.find(id); i >= 0 {
		g.current = i
		return
	}
	g.controllers = append(g.controllers, &controller{id: id})
	g.current = len(g.controllers) - 1
}

// HandleRemoved detaches a controller. The most recently attached remaining
// controller becomes current.
func (g *Gamepad) HandleRemoved(id uint32) {
	if i := g.find(id); i >= 0 {
		g.controllers = slices.Delete(g.controllers, i, i+1)
	}
	g.current = len(g.controllers) - 1
}

func (g *Gamepad) HandleButton(id uint32, button GamepadButton, pressed bool) {
	i := g.find(id)
	if i < 0 || button >= gamepadButtonCount {
		return
	}
	g.current = i
	c := g.controllers[i]
	if pressed {
		c.buttons |= 1 << button
	} else {
		c.buttons &^= 1 << button
	}
}

func (g *Gamepad) HandleAxis(id uint32, axis GamepadAxis, value int16) {
	i := g.find(id)
	if i < 0 || axis >= axisCount {
		return
	}
	g.current = i
	g.controllers[i].axis[axis] = value
}

func (g *Gamepad) PostEvents() {
	if g.current < 0 {
		g.Buttons.Update(0)
		g.Axis = [axisCount]int16{}
		return
	}
	c := g.controllers[g.current]
	axis := c.axis
	applyDeadzoneStick(&axis[AxisLeftX], &axis[AxisLeftY], g.DeadzoneStick)
	applyDeadzoneStick(&axis[AxisRightX], &axis[AxisRightY], g.DeadzoneStick)
	applyDeadzoneTrigger(&axis[AxisTriggerLeft], g.DeadzoneTrigger)
	applyDeadzoneTrigger(&axis[AxisTriggerRight], g.DeadzoneTrigger)

	state := c.buttons
	for a, v := range axis {
		switch {
		case v < -g.AxisButtonThreshold:
			state |= 1 << axisButton(GamepadAxis(a), true)
		case v > g.AxisButtonThreshold:
			state |= 1 << axisButton(GamepadAxis(a), false)
		}
	}
	g.Buttons.Update(state)
	g.Axis = axis
}

// the stick snaps to rest only when both axes are inside the deadzone
func applyDeadzoneStick(x, y *int16, deadzone int16) {
	if *x != math.MinInt16 && *y != math.MinInt16 && abs16(*x) < deadzone && abs16(*y) < deadzone {
		*x, *y = 0, 0
	}
}

func applyDeadzoneTrigger(v *int16, deadzone int16) {
	if *v != math.MinInt16 && abs16(*v) < deadzone {
		*v = 0
	}
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
