package input

import (
	"fmt"
	"strings"
)

// Key is a physical key, independent of the keyboard layout.
type Key uint16

const (
	KeyUnknown Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyReturn
	KeyEscape
	KeyBackspace
	KeyTab
	KeySpace
	KeyLeftShift
	KeyRightShift
	KeyLeftCtrl
	KeyRightCtrl
	KeyLeftAlt
	KeyRightAlt
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyKp0
	KeyKp1
	KeyKp2
	KeyKp3
	KeyKp4
	KeyKp5
	KeyKp6
	KeyKp7
	KeyKp8
	KeyKp9

	keyCount
)

var keyNames = func() [keyCount]string {
	var names [keyCount]string
	names[KeyUnknown] = "unknown"
	for k := KeyA; k <= KeyZ; k++ {
		names[k] = string(rune('a' + k - KeyA))
	}
	for k := Key0; k <= Key9; k++ {
		names[k] = string(rune('0' + k - Key0))
	}
	for k := KeyF1; k <= KeyF12; k++ {
		names[k] = fmt.Sprintf("f%d", k-KeyF1+1)
	}
	for k := KeyKp0; k <= KeyKp9; k++ {
		names[k] = fmt.Sprintf("kp%d", k-KeyKp0)
	}
	names[KeyReturn] = "return"
	names[KeyEscape] = "escape"
	names[KeyBackspace] = "backspace"
	names[KeyTab] = "tab"
	names[KeySpace] = "space"
	names[KeyLeftShift] = "lshift"
	names[KeyRightShift] = "rshift"
	names[KeyLeftCtrl] = "lctrl"
	names[KeyRightCtrl] = "rctrl"
	names[KeyLeftAlt] = "lalt"
	names[KeyRightAlt] = "ralt"
	names[KeyUp] = "up"
	names[KeyDown] = "down"
	names[KeyLeft] = "left"
	names[KeyRight] = "right"
	return names
}()

func (k Key) String() string {
	if k < keyCount {
		return keyNames[k]
	}
	return fmt.Sprintf("key(%d)", uint16(k))
}

// ParseKey looks a key up by its lower case name.
func ParseKey(name string) (Key, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range keyNames {
		if n == name {
			return Key(k), nil
		}
	}
	return KeyUnknown, fmt.Errorf("unknown key %q", name)
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Keys tracks every key individually, with edge detection against the
// previous frame.
type Keys struct {
	state [keyCount]bool
	prev  [keyCount]bool
}

// NextFrame starts a new frame. Held keys stay held until released.
func (k *Keys) NextFrame() {
	k.prev = k.state
}

func (k *Keys) Set(key Key, pressed bool) {
	if key < keyCount {
		k.state[key] = pressed
	}
}

func (k *Keys) IsHold(key Key) bool {
	return key < keyCount && k.state[key]
}

func (k *Keys) IsDown(key Key) bool {
	return key < keyCount && k.state[key] && !k.prev[key]
}

func (k *Keys) IsUp(key Key) bool {
	return key < keyCount && !k.state[key] && k.prev[key]
}
