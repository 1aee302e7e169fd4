package input

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keymap is the YAML form of the keyboard mask and the rebind matrices.
// Rebind rows list the general buttons a source button triggers.
//
//	keyboard:
//	  0: return
//	  3: w
//	rebind:
//	  keyboard:
//	    3: [3]
type Keymap struct {
	Keyboard map[int]Key `yaml:"keyboard"`
	Rebind   struct {
		Mouse    map[int][]int `yaml:"mouse"`
		Keyboard map[int][]int `yaml:"keyboard"`
		Gamepad  map[int][]int `yaml:"gamepad"`
	} `yaml:"rebind"`
}

// DefaultKeymap binds return and escape, WASD to movement and the arrow keys
// to the camera.
func DefaultKeymap() *Keymap {
	km := &Keymap{Keyboard: map[int]Key{
		0:  KeyReturn,
		1:  KeyEscape,
		2:  KeyTab,
		3:  KeyW,
		4:  KeyS,
		5:  KeyA,
		6:  KeyD,
		7:  KeyUp,
		8:  KeyDown,
		9:  KeyLeft,
		10: KeyRight,
	}}
	return km
}

func LoadKeymap(path string) (*Keymap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keymap: %w", err)
	}
	km := &Keymap{}
	if err := yaml.Unmarshal(data, km); err != nil {
		return nil, fmt.Errorf("parse keymap %s: %w", path, err)
	}
	return km, nil
}

// Apply validates km and writes it into s. Unlisted rebind rows keep the
// identity mapping.
func (km *Keymap) Apply(s *State) error {
	var mask Keymask
	for button, key := range km.Keyboard {
		if button < 0 || button >= len(mask) {
			return fmt.Errorf("keymap: keyboard button %d out of range", button)
		}
		mask[button] = key
	}
	matrices := []struct {
		kind RebindMatrixKind
		rows map[int][]int
	}{
		{RebindMouse, km.Rebind.Mouse},
		{RebindKeyboard, km.Rebind.Keyboard},
		{RebindGamepad, km.Rebind.Gamepad},
	}
	rebound := make([]RebindMatrix, len(matrices))
	for i, m := range matrices {
		rebound[i] = IdentityRebindMatrix()
		for src, targets := range m.rows {
			if src < 0 || src >= 32 {
				return fmt.Errorf("keymap: rebind source %d out of range", src)
			}
			var row uint32
			for _, t := range targets {
				if t < 0 || t >= 32 {
					return fmt.Errorf("keymap: rebind target %d out of range", t)
				}
				row |= 1 << t
			}
			rebound[i][src] = row
		}
	}

	s.Keyboard.Keymask = mask
	for i, m := range matrices {
		s.General.SetRebindMatrix(m.kind, rebound[i])
	}
	return nil
}

func (km *Keymap) Marshal() ([]byte, error) {
	return yaml.Marshal(km)
}
