package host

import (
	"errors"
	"image"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/frameforge/core"
)

// InitSDL starts the SDL video subsystem and loads the Vulkan library.
// The returned function shuts both down.
func InitSDL() (func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, err
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, err
	}
	return func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}, nil
}

// Window is an SDL window the Vulkan backend presents into
type Window struct {
	window *sdl.Window
	log    log.FieldLogger
}

// NewWindow opens a resizable Vulkan window sized by cfg. InitSDL
// must have been called.
func NewWindow(title string, cfg core.GraphicsConfiguration, logger log.FieldLogger) (*Window, error) {
	flags := uint32(sdl.WINDOW_VULKAN | sdl.WINDOW_RESIZABLE)
	if cfg.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		flags)
	if err != nil {
		return nil, err
	}

	logger = core.LoggerOrDefault(logger)
	logger.WithFields(log.Fields{
		"width":      cfg.ScreenWidth,
		"height":     cfg.ScreenHeight,
		"fullscreen": cfg.Fullscreen,
	}).Debug("window created")
	return &Window{window: window, log: logger}, nil
}

// Handle returns the *sdl.Window
func (w *Window) Handle() unsafe.Pointer {
	return unsafe.Pointer(w.window)
}

// Size is the current window size
func (w *Window) Size() (int, int) {
	width, height := w.window.GetSize()
	return int(width), int(height)
}

// CreateSurface creates the Vulkan surface of the window on instance
func (w *Window) CreateSurface(instance any) (unsafe.Pointer, error) {
	return w.window.VulkanCreateSurface(instance)
}

// InstanceExtensions are the instance extensions SDL needs to present
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// ProcAddr is SDL's vkGetInstanceProcAddr
func ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// Destroy closes the window
func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
}

// Run calls frame on every tick of the fps ticker and polls events on
// the event ticker, until frame returns false, escape is pressed or
// the window is closed. It must run on the main thread.
func (w *Window) Run(t *core.Time, frame func() bool) error {
	if w.window == nil {
		return errors.New("host: window destroyed")
	}

	for {
		select {
		case <-t.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						w.log.Debug("escape pressed, leaving the loop")
						return nil
					}
				case *sdl.QuitEvent:
					w.log.Debug("window closed, leaving the loop")
					return nil
				}
			}
		case <-t.FpsTicker().C:
			t.Frames().Tick()
			if !frame() {
				return nil
			}
		}
	}
}

// Display reports the fullscreen modes of one SDL display
type Display struct {
	Index int
}

// Modes lists the display's resolutions
func (d Display) Modes() ([]image.Point, error) {
	n, err := sdl.GetNumDisplayModes(d.Index)
	if err != nil {
		return nil, err
	}
	modes := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		mode, err := sdl.GetDisplayMode(d.Index, i)
		if err != nil {
			return nil, err
		}
		modes = append(modes, image.Pt(int(mode.W), int(mode.H)))
	}
	return modes, nil
}

// SupportsMode implements settings.Display
func (d Display) SupportsMode(width, height int) bool {
	modes, err := d.Modes()
	if err != nil {
		return false
	}
	return Modes(modes).SupportsMode(width, height)
}

// Modes is a fixed list of resolutions
type Modes []image.Point

// SupportsMode implements settings.Display
func (m Modes) SupportsMode(width, height int) bool {
	for _, p := range m {
		if p.X == width && p.Y == height {
			return true
		}
	}
	return false
}
