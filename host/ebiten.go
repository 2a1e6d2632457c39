package host

import (
	"errors"
	"image"
	"unsafe"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
)

// Ebiten shows the frames of the raster backend in an ebiten window
type Ebiten struct {
	title         string
	width, height int
	fullscreen    bool
	log           log.FieldLogger

	time   *core.Time
	frame  func() bool
	latest *image.RGBA
	target *ebiten.Image
}

// NewEbiten creates the host, the window opens in Run
func NewEbiten(title string, cfg core.GraphicsConfiguration, logger log.FieldLogger) *Ebiten {
	return &Ebiten{
		title:      title,
		width:      int(cfg.ScreenWidth),
		height:     int(cfg.ScreenHeight),
		fullscreen: cfg.Fullscreen,
		log:        core.LoggerOrDefault(logger),
	}
}

// Handle is nil, the raster backend draws into memory
func (e *Ebiten) Handle() unsafe.Pointer { return nil }

// Size is the logical screen size
func (e *Ebiten) Size() (int, int) { return e.width, e.height }

// Present keeps the latest rendered frame for the next Draw. Pass it
// to raster.New.
func (e *Ebiten) Present(frame *image.RGBA) {
	e.latest = frame
}

// Run opens the window and calls frame once per tick until it returns
// false, escape is pressed or the window is closed
func (e *Ebiten) Run(t *core.Time, frame func() bool) error {
	e.time, e.frame = t, frame

	ebiten.SetWindowTitle(e.title)
	ebiten.SetWindowSize(e.width, e.height)
	ebiten.SetFullscreen(e.fullscreen)
	if t.Fps() > 0 {
		ebiten.SetTPS(t.Fps())
	} else {
		ebiten.SetTPS(ebiten.SyncWithFPS)
	}

	err := ebiten.RunGame(e)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Update implements ebiten.Game
func (e *Ebiten) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		e.log.Debug("escape pressed, leaving the loop")
		return ebiten.Termination
	}
	e.time.Frames().Tick()
	if !e.frame() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game
func (e *Ebiten) Draw(screen *ebiten.Image) {
	if e.latest == nil {
		return
	}
	size := e.latest.Bounds().Size()
	if e.target == nil || e.target.Bounds().Size() != size {
		if e.target != nil {
			e.target.Deallocate()
		}
		e.target = ebiten.NewImage(size.X, size.Y)
	}
	e.target.WritePixels(e.latest.Pix)
	screen.DrawImage(e.target, nil)
}

// Layout implements ebiten.Game
func (e *Ebiten) Layout(outsideWidth, outsideHeight int) (int, int) {
	return e.width, e.height
}
