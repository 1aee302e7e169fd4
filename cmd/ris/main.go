package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/risengine/ris/internal/config"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/core/event"
	"github.com/risengine/ris/internal/engine"
	"github.com/risengine/ris/internal/fallback"
	"github.com/risengine/ris/internal/mathx"
	"github.com/risengine/ris/internal/settings"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ris\033[0m \033[90mgame engine runtime\033[0m")
	fmt.Println()
}

func printSection(title string) {
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", max(3, 44-len(title))))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()
	defer log.Sync()
	defer zap.ReplaceGlobals(log)()

	printBanner()
	printSection("config")
	printOK(fmt.Sprintf("loaded %s", config.Path()))
	if cfg.Assets.UseCompiled {
		printOK(fmt.Sprintf("compiled assets %s", cfg.Assets.Compiled))
	} else {
		printOK(fmt.Sprintf("asset directory %s", cfg.Assets.Directory))
	}
	fmt.Println()

	events := event.NewQueue()
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)
	go func() {
		for sig := range shutdownCh {
			log.Info("received shutdown signal", zap.String("signal", sig.String()))
			event.Push(events, event.Quit{})
		}
	}()

	return engine.Run(context.Background(), engine.Deps{
		Config:   cfg,
		Log:      log,
		Events:   events,
		Register: register,
		Setup:    setup,
	})
}

// newLogger builds the console logger and, when logging.file is set, tees it
// into a JSON file under <pref dir>/logs that rotates on every start.
func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Logging.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	nop := func() {}
	if !cfg.Logging.File {
		log, err := zapCfg.Build()
		return log, nop, err
	}

	prefDir, err := settings.PrefDir(cfg.Paths.PrefDir)
	if err != nil {
		return nil, nop, err
	}
	file, err := fallback.NewAppend(filepath.Join(prefDir, "logs"), ".log", cfg.Logging.OldFileCount)
	if err != nil {
		return nil, nop, fmt.Errorf("open log file: %w", err)
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(file),
		zapCfg.Level,
	)
	log, err := zapCfg.Build(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	if err != nil {
		file.Close()
		return nil, nop, err
	}
	return log, func() { file.Close() }, nil
}

// spinner turns its game object around the up axis.
type spinner struct {
	ecs.BaseScript
	Speed float32 // radians per second
}

func (s *spinner) Update(ctx ecs.ScriptContext) error {
	rot, err := ctx.GameObject.LocalRotation(ctx.Scene)
	if err != nil {
		return err
	}
	step := mathx.AngleAxis(s.Speed*float32(ctx.Frame.Delta.Seconds()), mathx.Up())
	return ctx.GameObject.SetLocalRotation(ctx.Scene, step.Mul(rot))
}

func register(r *ecs.Registry) error {
	return ecs.RegisterScript(r, "spinner", func() *spinner { return &spinner{Speed: 1} })
}

func setup(g *engine.GodState) error {
	h, err := ecs.NewDynamic(g.Scene)
	if err != nil {
		return err
	}
	if err := h.SetName(g.Scene, "spinner"); err != nil {
		return err
	}
	_, err = ecs.AddScript[*spinner](g.Scene, h)
	return err
}
