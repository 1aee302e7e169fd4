package input

// Mouse holds the cursor position, per-frame motion and wheel deltas and up
// to 32 buttons.
type Mouse struct {
	Buttons   Buttons
	X, Y      int32
	XRel      int32
	YRel      int32
	WheelXRel int32
	WheelYRel int32

	held uint32
}

// PreEvents resets the per-frame deltas.
func (m *Mouse) PreEvents() {
	m.XRel, m.YRel = 0, 0
	m.WheelXRel, m.WheelYRel = 0, 0
}

func (m *Mouse) HandleMotion(x, y, xrel, yrel int32) {
	m.X, m.Y = x, y
	m.XRel += xrel
	m.YRel += yrel
}

func (m *Mouse) HandleWheel(x, y int32) {
	m.WheelXRel += x
	m.WheelYRel += y
}

func (m *Mouse) HandleButton(button uint8, pressed bool) {
	if button >= 32 {
		return
	}
	if pressed {
		m.held |= 1 << button
	} else {
		m.held &^= 1 << button
	}
}

func (m *Mouse) PostEvents() {
	m.Buttons.Update(m.held)
}
