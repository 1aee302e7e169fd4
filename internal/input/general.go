package input

import "math/bits"

// RebindMatrix maps each source button to the mask of general buttons it
// triggers.
type RebindMatrix [32]uint32

// IdentityRebindMatrix maps button i to general button i.
func IdentityRebindMatrix() RebindMatrix {
	var m RebindMatrix
	for i := range m {
		m[i] = 1 << i
	}
	return m
}

// Rebind ORs together the rows of every held button.
func Rebind(hold uint32, m *RebindMatrix) uint32 {
	var result uint32
	for hold != 0 {
		i := bits.TrailingZeros32(hold)
		result |= m[i]
		hold &= hold - 1
	}
	return result
}

type RebindMatrixKind uint8

const (
	RebindMouse RebindMatrixKind = iota
	RebindKeyboard
	RebindGamepad
)

// General actions, the bits of General.Buttons.
const (
	ActionOK uint32 = 1 << iota
	ActionCancel
	ActionMenu
	ActionMoveUp
	ActionMoveDown
	ActionMoveLeft
	ActionMoveRight
	ActionCameraUp
	ActionCameraDown
	ActionCameraLeft
	ActionCameraRight
)

// General composes the device buttons into one action mask.
type General struct {
	Buttons Buttons

	rebind [3]RebindMatrix
}

func NewGeneral() General {
	g := General{}
	for i := range g.rebind {
		g.rebind[i] = IdentityRebindMatrix()
	}
	return g
}

func (g *General) RebindMatrix(kind RebindMatrixKind) RebindMatrix {
	return g.rebind[kind]
}

func (g *General) SetRebindMatrix(kind RebindMatrixKind, m RebindMatrix) {
	g.rebind[kind] = m
}

func (g *General) Update(mouse, keyboard, gamepad *Buttons) {
	state := Rebind(mouse.Hold(), &g.rebind[RebindMouse]) |
		Rebind(keyboard.Hold(), &g.rebind[RebindKeyboard]) |
		Rebind(gamepad.Hold(), &g.rebind[RebindGamepad])
	g.Buttons.Update(state)
}
