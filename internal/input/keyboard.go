package input

// Keymask maps each of the 32 keyboard buttons to a key.
type Keymask [32]Key

// Keyboard folds individual keys into 32 buttons through its keymask.
type Keyboard struct {
	Buttons Buttons
	Keys    Keys
	Keymask Keymask
}

func (kb *Keyboard) PreEvents() {
	kb.Keys.NextFrame()
}

func (kb *Keyboard) HandleKey(key Key, pressed bool) {
	kb.Keys.Set(key, pressed)
}

func (kb *Keyboard) PostEvents() {
	var state uint32
	for i, key := range kb.Keymask {
		if key != KeyUnknown && kb.Keys.IsHold(key) {
			state |= 1 << i
		}
	}
	kb.Buttons.Update(state)
}
