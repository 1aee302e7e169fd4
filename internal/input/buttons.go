// Package input turns window events into per-frame button state: raw
// keyboard, mouse and gamepad buttons, and the general 32 bit action mask
// composed from them through rebind matrices.
package input

// Buttons is a 32 bit button state with edge detection against the
// previous frame.
type Buttons struct {
	hold uint32
	prev uint32
}

// Update moves the current state into the previous one and stores state.
func (b *Buttons) Update(state uint32) {
	b.prev = b.hold
	b.hold = state
}

// Set overwrites both frames, for example when a new front buffer is built
// from an old one.
func (b *Buttons) Set(state, prev uint32) {
	b.hold = state
	b.prev = prev
}

func (b *Buttons) Hold() uint32 { return b.hold }
func (b *Buttons) Down() uint32 { return b.hold &^ b.prev }
func (b *Buttons) Up() uint32   { return b.prev &^ b.hold }

// IsHold reports whether any button in mask is held.
func (b *Buttons) IsHold(mask uint32) bool { return b.Hold()&mask != 0 }
func (b *Buttons) IsDown(mask uint32) bool { return b.Down()&mask != 0 }
func (b *Buttons) IsUp(mask uint32) bool   { return b.Up()&mask != 0 }
