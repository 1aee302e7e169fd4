package engine

import (
	"errors"
	"time"

	"github.com/risengine/ris/internal/core/event"
	"github.com/risengine/ris/internal/core/system"
	"github.com/risengine/ris/internal/input"
	"github.com/risengine/ris/internal/settings"
	"go.uber.org/zap"
)

// ErrManualCrash is returned when the crash key was held long enough.
var ErrManualCrash = errors.New("manual crash")

// ReloadKey asks for a hot reload.
const ReloadKey = input.KeyF6

// InputFrame polls the event sources and folds the events into the input
// state.
type InputFrame struct {
	log    *zap.Logger
	god    *GodState
	bus    *event.Bus
	source event.Source
	now    func() time.Time

	// valid while the bus dispatches
	current *input.State
	quit    bool
}

func NewInputFrame(god *GodState, bus *event.Bus, source event.Source, log *zap.Logger) *InputFrame {
	f := &InputFrame{
		log:    log,
		god:    god,
		bus:    bus,
		source: source,
		now:    time.Now,
	}
	f.subscribe()
	return f
}

func (f *InputFrame) subscribe() {
	event.Subscribe(f.bus, func(event.Quit) { f.quit = true })
	event.Subscribe(f.bus, func(e event.WindowResized) {
		size := [2]uint32{e.Width, e.Height}
		f.current.WindowResized = &size
		f.god.windowResized = &size
		s := f.god.Settings.BorrowMut()
		s.Get().SetWindow(settings.WindowSettings{Width: e.Width, Height: e.Height})
		s.Release()
		f.log.Debug("window resized", zap.Uint32("width", e.Width), zap.Uint32("height", e.Height))
	})
	event.Subscribe(f.bus, func(e event.Key) {
		f.current.Keyboard.HandleKey(e.Key, e.Pressed)
		if e.Key == ReloadKey && e.Pressed {
			f.god.RequestReload()
		}
	})
	event.Subscribe(f.bus, func(e event.MouseMotion) {
		f.current.Mouse.HandleMotion(e.X, e.Y, e.XRel, e.YRel)
	})
	event.Subscribe(f.bus, func(e event.MouseWheel) {
		f.current.Mouse.HandleWheel(e.X, e.Y)
	})
	event.Subscribe(f.bus, func(e event.MouseButton) {
		f.current.Mouse.HandleButton(e.Button, e.Pressed)
	})
	event.Subscribe(f.bus, func(e event.ControllerAdded) {
		f.current.Gamepad.HandleAdded(e.Which)
		f.log.Info("controller added", zap.Uint32("which", e.Which))
	})
	event.Subscribe(f.bus, func(e event.ControllerRemoved) {
		f.current.Gamepad.HandleRemoved(e.Which)
		f.log.Info("controller removed", zap.Uint32("which", e.Which))
	})
	event.Subscribe(f.bus, func(e event.ControllerButton) {
		f.current.Gamepad.HandleButton(e.Which, e.Button, e.Pressed)
	})
	event.Subscribe(f.bus, func(e event.ControllerAxis) {
		f.current.Gamepad.HandleAxis(e.Which, e.Axis, e.Value)
	})
	event.Subscribe(f.bus, func(e event.SourceChanged) {
		f.log.Debug("asset source changed", zap.String("path", e.Path))
		f.god.RequestReload()
	})
}

func (f *InputFrame) Phase() system.Phase { return system.PhaseInput }

func (f *InputFrame) Run(system.Frame) (system.State, error) {
	b := f.god.Input.BorrowMut()
	defer b.Release()
	f.current = b.Get()
	defer func() { f.current = nil }()

	f.current.PreEvents()
	if f.source != nil {
		f.source.Poll(f.bus)
	}
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	signal := f.current.PostEvents(f.now())

	switch {
	case signal == input.SignalCrash:
		f.log.Error("manual crash requested")
		return system.WantsToQuit, ErrManualCrash
	case f.quit:
		f.quit = false
		return system.WantsToQuit, nil
	case signal == input.SignalRestart:
		f.log.Info("manual restart requested")
		return system.WantsToRestart, nil
	}
	return system.Continue, nil
}
