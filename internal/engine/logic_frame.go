package engine

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/core/system"
	"github.com/risengine/ris/internal/input"
	"github.com/risengine/ris/internal/mathx"
	"go.uber.org/zap"
)

// FPSKey logs the average frame time.
const FPSKey = input.KeyF

// LogicFrame moves the camera from the general buttons, updates the scripts
// and applies the queued commands.
type LogicFrame struct {
	log *zap.Logger
	god *GodState

	horizontal float32
	vertical   float32
}

func NewLogicFrame(god *GodState, log *zap.Logger) *LogicFrame {
	return &LogicFrame{log: log, god: god}
}

func (f *LogicFrame) Phase() system.Phase { return system.PhaseLogic }

func (f *LogicFrame) Run(frame system.Frame) (system.State, error) {
	f.updateCamera(frame)

	if f.god.Scene != nil {
		err := f.god.Scene.UpdateScripts(ecs.FrameData{
			Number: frame.Number,
			Delta:  frame.Prev,
			State:  f.god,
		})
		if err != nil {
			return system.Continue, fmt.Errorf("update scripts: %w", err)
		}
	}

	n, err := f.god.Commands.Drain(f.god)
	if err != nil {
		return system.Continue, fmt.Errorf("apply %d commands: %w", n, err)
	}
	return system.Continue, nil
}

func (f *LogicFrame) updateCamera(frame system.Frame) {
	ib := f.god.Input.Borrow()
	defer ib.Release()
	in := ib.Get()
	cb := f.god.Camera.BorrowMut()
	defer cb.Release()
	camera := cb.Get()

	rotationSpeed := 2 * frame.AvgSeconds()
	movementSpeed := 2 * frame.AvgSeconds()
	mouseSpeed := frame.AvgSeconds()
	general := &in.General.Buttons

	if in.Mouse.Buttons.IsHold(input.ActionOK) {
		f.vertical -= mouseSpeed * float32(in.Mouse.YRel)
		f.horizontal -= mouseSpeed * float32(in.Mouse.XRel)
	} else if general.IsDown(input.ActionOK) {
		f.horizontal, f.vertical = 0, 0
		camera.Position = mathx.Forward().Scale(-1)
	}

	if general.IsHold(input.ActionCameraUp) {
		f.vertical += rotationSpeed
	}
	if general.IsHold(input.ActionCameraDown) {
		f.vertical -= rotationSpeed
	}
	if general.IsHold(input.ActionCameraLeft) {
		f.horizontal += rotationSpeed
	}
	if general.IsHold(input.ActionCameraRight) {
		f.horizontal -= rotationSpeed
	}

	for f.horizontal < 0 {
		f.horizontal += 2 * mathx.Pi
	}
	for f.horizontal > 2*mathx.Pi {
		f.horizontal -= 2 * mathx.Pi
	}
	f.vertical = math32.Max(-mathx.Pi/2, math32.Min(f.vertical, mathx.Pi/2))

	pitch := mathx.AngleAxis(f.vertical, mathx.Right())
	yaw := mathx.AngleAxis(f.horizontal, mathx.Up())
	camera.Rotation = yaw.Mul(pitch)

	forward := camera.Rotation.Rotate(mathx.Forward()).Scale(movementSpeed)
	right := camera.Rotation.Rotate(mathx.Right()).Scale(movementSpeed)
	if general.IsHold(input.ActionMoveUp) {
		camera.Position = camera.Position.Add(forward)
	}
	if general.IsHold(input.ActionMoveDown) {
		camera.Position = camera.Position.Sub(forward)
	}
	if general.IsHold(input.ActionMoveLeft) {
		camera.Position = camera.Position.Sub(right)
	}
	if general.IsHold(input.ActionMoveRight) {
		camera.Position = camera.Position.Add(right)
	}

	if in.Keyboard.Keys.IsDown(FPSKey) {
		f.log.Debug("frame time", zap.Duration("avg", frame.Avg), zap.Float64("fps", frame.AvgFPS()))
	}
}
