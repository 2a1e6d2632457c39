// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command frameforge renders the demo scene with the Vulkan backend in
// an SDL window, or with the raster backend in an ebiten window or
// without any window at all.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/assets"
	"github.com/devblok/frameforge/backend/raster"
	"github.com/devblok/frameforge/backend/vulkan"
	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/device"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/host"
	"github.com/devblok/frameforge/registry"
	"github.com/devblok/frameforge/resource"
	"github.com/devblok/frameforge/settings"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

var (
	backendName  = flag.String("backend", "vulkan", "Backend and host: vulkan, raster or headless")
	settingsFile = flag.String("settings", "settings.ini", "Settings file, .ini, .toml or .yaml")
	envFile      = flag.String("env", ".env", "Environment overrides")
	assetDir     = flag.String("assets", "./assets", "Resource directory")
	archives     = flag.String("archives", "", "Comma separated kar archives searched before the resource directory")
	shaderDir    = flag.String("shaders", "./shaders", "Directory of compiled default shaders")
	logLevel     = flag.String("loglevel", "info", "Log level")
	logFormat    = flag.String("logformat", "text", "Log format, text or json")
	fps          = flag.Int("fps", 60, "Frames per second, 0 does not limit")
	frames       = flag.Int("frames", 0, "Stop after this many frames, headless only")
	screenshot   = flag.String("screenshot", "", "Save the last headless frame as PNG")
)

const title = "Frameforge"

func configure() core.Configuration {
	cfg := core.DefaultConfiguration()
	cfg.Time.FramesPerSecond = *fps
	cfg.Graphics.ShaderDirectory = *shaderDir
	cfg.Resources.Directory = *assetDir
	if *archives != "" {
		cfg.Resources.Archives = strings.Split(*archives, ",")
	}
	cfg.Logging = core.LoggingConfiguration{Level: *logLevel, Format: *logFormat}
	return cfg
}

func main() {
	flag.Parse()
	cfg := configure()
	logger := core.NewLogger(cfg.Logging)

	if err := profiled(func() error { return run(cfg, logger) }); err != nil {
		logger.WithError(err).Error("frameforge stopped")
		os.Exit(1)
	}
}

// profiled runs fn with the profiles the flags ask for
func profiled(fn func() error) error {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := trace.Start(f); err != nil {
			return err
		}
		defer trace.Stop()
	}

	// the heap profile is written after failed runs too
	err := fn()
	if *memProfile != "" {
		err = errors.Join(err, writeHeapProfile(*memProfile))
	}
	return err
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func run(cfg core.Configuration, logger *log.Logger) error {
	var display settings.Display
	if *backendName == "vulkan" {
		quit, err := host.InitSDL()
		if err != nil {
			return fmt.Errorf("sdl: %w", err)
		}
		defer quit()
		display = host.Display{}
	}

	s, err := settings.Load(settings.Options{
		Path:    *settingsFile,
		EnvFile: *envFile,
		Display: display,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	s.Apply(&cfg)

	src, release, err := resource.Open(cfg.Resources, assets.Builtin(), logger)
	if err != nil {
		return err
	}
	defer release()

	timeService := core.NewTime(cfg.Time)
	defer timeService.Destroy()

	switch *backendName {
	case "vulkan":
		window, err := host.NewWindow(title, cfg.Graphics, logger)
		if err != nil {
			return err
		}
		defer window.Destroy()

		instance, err := device.NewInstance(device.DefaultApplicationInfo, host.ProcAddr(), device.Configuration{
			DebugMode:  *debug,
			Extensions: window.InstanceExtensions(),
		}, logger)
		if err != nil {
			return err
		}
		defer instance.Destroy()

		backend := vulkan.New(vulkan.Options{
			Instance:      instance,
			Shaders:       assets.Shaders(cfg.Graphics.ShaderDirectory),
			SwapchainSize: cfg.Graphics.SwapchainSize,
			Extensions:    cfg.Graphics.DeviceExtensions,
			Logger:        logger,
		})
		return loop(cfg, backend, window, src, timeService.Frames(), logger, host.LoopFunc(func(frame func() bool) error {
			return window.Run(timeService, frame)
		}))

	case "raster":
		window := host.NewEbiten(title, cfg.Graphics, logger)
		backend := raster.New(logger, window.Present)
		return loop(cfg, backend, window, src, timeService.Frames(), logger, host.LoopFunc(func(frame func() bool) error {
			return window.Run(timeService, frame)
		}))

	case "headless":
		window := host.Headless{Width: int(cfg.Graphics.ScreenWidth), Height: int(cfg.Graphics.ScreenHeight)}
		backend := raster.New(logger, nil)
		return loop(cfg, backend, window, src, timeService.Frames(), logger, host.LoopFunc(func(frame func() bool) error {
			if err := window.Run(context.Background(), timeService, *frames, frame); err != nil {
				return err
			}
			if *screenshot != "" {
				return backend.SavePNG(*screenshot)
			}
			return nil
		}))

	default:
		return fmt.Errorf("unknown backend %q", *backendName)
	}
}

// loop creates the graphics system and the demo scene, then renders
// until the host stops
func loop(cfg core.Configuration, backend gfx.Backend, window gfx.Window, src resource.Source, timer *core.FrameTimer, logger log.FieldLogger, hostLoop host.Loop) error {
	sys, err := gfx.NewSystem(backend, window, cfg.Graphics, src, logger)
	if err != nil {
		backend.Destroy()
		return err
	}
	defer sys.Destroy()

	reg := registry.New(sys, cfg.Registry, cfg.Graphics.ClearColor, logger)
	defer reg.Destroy()

	sc, err := newScene(reg)
	if err != nil {
		return err
	}

	stats := newStatsLogger(sys, timer, logger, time.Second)
	frame := func() bool {
		sc.update(timer.FrameTime())
		if err := reg.Render(); err != nil {
			if errors.Is(err, gfx.ErrDeviceLost) {
				logger.Debug("frame lost")
			} else {
				logger.WithError(err).Warn("frame failed")
			}
		}
		stats.tick()
		return true
	}
	return hostLoop.RunLoop(frame)
}
