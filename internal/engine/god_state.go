// Package engine ties the subsystems into the frame loop: the god state,
// the input, logic and output frames and the restart loop around them.
package engine

import (
	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/input"
	"github.com/risengine/ris/internal/mathx"
	"github.com/risengine/ris/internal/ptr"
	"github.com/risengine/ris/internal/settings"
)

type Camera struct {
	Position mathx.Vec3
	Rotation mathx.Quat
}

// DefaultCamera sits one unit behind the origin, looking forward.
func DefaultCamera() Camera {
	return Camera{
		Position: mathx.Forward().Scale(-1),
		Rotation: mathx.QuatIdentity(),
	}
}

// GodState is the authoritative state of a running engine. The frames read
// and write it through its cells; everything else mutates it by pushing
// commands.
type GodState struct {
	Input    *ptr.ArefCell[input.State]
	Settings *ptr.ArefCell[settings.Settings]
	Camera   *ptr.ArefCell[Camera]
	Scene    *ecs.Scene
	Commands *CommandQueue
	// GodAsset is nil when none could be loaded.
	GodAsset *asset.GodAsset

	// per-frame events, cleared by ResetEvents
	windowResized   *[2]uint32
	reloadRequested bool
	reloadShaders   bool
}

type GodStateCreateInfo struct {
	Input           *input.State
	Settings        *settings.Settings
	Scene           *ecs.Scene
	GodAsset        *asset.GodAsset
	CommandCapacity int
}

func NewGodState(info GodStateCreateInfo) *GodState {
	in := info.Input
	if in == nil {
		in = input.NewState(input.DefaultRestartHold, input.DefaultCrashHold)
	}
	s := info.Settings
	if s == nil {
		s = settings.Default()
	}
	return &GodState{
		Input:    ptr.NewArefCell(*in),
		Settings: ptr.NewArefCell(*s),
		Camera:   ptr.NewArefCell(DefaultCamera()),
		Scene:    info.Scene,
		Commands: NewCommandQueue(info.CommandCapacity),
		GodAsset: info.GodAsset,
	}
}

// ResetEvents starts a new frame. It returns the settings as they were at
// the end of the previous frame, flags included, so they can be saved while
// this frame runs.
func (g *GodState) ResetEvents() *settings.Settings {
	g.windowResized = nil
	g.reloadRequested = false
	g.reloadShaders = false

	b := g.Settings.BorrowMut()
	defer b.Release()
	prev := b.Get().Clone()
	b.Get().Reset()
	return prev
}

// WindowResized is the new drawable size when the window changed this frame.
func (g *GodState) WindowResized() (uint32, uint32, bool) {
	if g.windowResized == nil {
		return 0, 0, false
	}
	return g.windowResized[0], g.windowResized[1], true
}

func (g *GodState) RequestReload()        { g.reloadRequested = true }
func (g *GodState) ReloadRequested() bool { return g.reloadRequested }

// ReloadShaders is raised for exactly the one output frame that follows a
// hot reload.
func (g *GodState) ReloadShaders() bool { return g.reloadShaders }

// CurrentSettings copies the settings out of their cell.
func (g *GodState) CurrentSettings() *settings.Settings {
	b := g.Settings.Borrow()
	defer b.Release()
	return b.Get().Clone()
}

// CurrentCamera copies the camera out of its cell.
func (g *GodState) CurrentCamera() Camera {
	b := g.Camera.Borrow()
	defer b.Release()
	return *b.Get()
}
