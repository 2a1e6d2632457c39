// Package gfxtest provides a recording gfx.Backend for tests
package gfxtest

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/model"
)

// ErrInjected is returned by calls listed in Backend.Fail
var ErrInjected = errors.New("gfxtest: injected failure")

// Window is a fixed size window without a native handle
type Window struct {
	Width, Height int
}

// Handle returns nil
func (w Window) Handle() unsafe.Pointer { return nil }

// Size returns the configured size
func (w Window) Size() (int, int) { return w.Width, w.Height }

// Backend records every call made to it. The zero value is ready.
type Backend struct {
	// Calls are the names of the calls made, in order
	Calls []string

	Draws   []gfx.DrawCall
	Sprites []gfx.SpriteCall
	Lines   []gfx.LineCall
	Clears  []glm.Vec4

	// Quiet stops recording Clear, submissions and Present, so
	// frames cost the backend nothing
	Quiet bool

	// Live are the created and not yet released handles
	Live map[gfx.Handle]string

	// Fail makes the named create call return ErrInjected
	Fail map[string]bool

	// Lost makes Clear and Present report a lost device
	Lost bool

	// Software reports a device without hardware vertex processing
	Software bool

	Usage     gfx.Usage
	Destroyed bool

	last gfx.Handle
}

var _ gfx.Backend = (*Backend)(nil)

// LoseDevice toggles the lost device state
func (b *Backend) LoseDevice(lost bool) {
	b.Lost = lost
}

// Count returns how many times the named call was made
func (b *Backend) Count(call string) int {
	n := 0
	for _, c := range b.Calls {
		if c == call {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls but keeps the live handles
func (b *Backend) Reset() {
	b.Calls = nil
	b.Draws = nil
	b.Sprites = nil
	b.Lines = nil
	b.Clears = nil
}

func (b *Backend) record(call string) error {
	b.Calls = append(b.Calls, call)
	if b.Fail[call] {
		return fmt.Errorf("%s: %w", call, ErrInjected)
	}
	return nil
}

func (b *Backend) create(kind string) gfx.Handle {
	if b.Live == nil {
		b.Live = make(map[gfx.Handle]string)
	}
	b.last++
	b.Live[b.last] = kind
	return b.last
}

// CreateDevice records the call
func (b *Backend) CreateDevice(_ gfx.Window, _ gfx.DeviceConfiguration) (gfx.DeviceInfo, error) {
	if err := b.record("CreateDevice"); err != nil {
		return gfx.DeviceInfo{}, err
	}
	return gfx.DeviceInfo{
		Name:                     "gfxtest",
		HardwareVertexProcessing: !b.Software,
	}, nil
}

// CreateVertexBuffer records the call and the usage
func (b *Backend) CreateVertexBuffer(usage gfx.Usage, _ *model.DrawInfo) (gfx.BufferHandle, error) {
	b.Usage = usage
	if err := b.record("CreateVertexBuffer"); err != nil {
		return 0, err
	}
	return gfx.BufferHandle(b.create("vertex")), nil
}

// CreateIndexBuffer records the call
func (b *Backend) CreateIndexBuffer(_ gfx.Usage, _ *model.DrawInfo) (gfx.BufferHandle, error) {
	if err := b.record("CreateIndexBuffer"); err != nil {
		return 0, err
	}
	return gfx.BufferHandle(b.create("index")), nil
}

// CreateMaterial records the call
func (b *Backend) CreateMaterial(_ *model.MaterialInfo) (gfx.MaterialHandle, error) {
	if err := b.record("CreateMaterial"); err != nil {
		return 0, err
	}
	return gfx.MaterialHandle(b.create("material")), nil
}

// CreateTexture records the call
func (b *Backend) CreateTexture(_ image.Image) (gfx.TextureHandle, error) {
	if err := b.record("CreateTexture"); err != nil {
		return 0, err
	}
	return gfx.TextureHandle(b.create("texture")), nil
}

// CreateLineBuffer records the call
func (b *Backend) CreateLineBuffer(_ int) (gfx.BufferHandle, error) {
	if err := b.record("CreateLineBuffer"); err != nil {
		return 0, err
	}
	return gfx.BufferHandle(b.create("lines")), nil
}

// Clear records the color
func (b *Backend) Clear(color glm.Vec4) error {
	if b.Quiet {
		return b.lost()
	}
	b.Calls = append(b.Calls, "Clear")
	if b.Lost {
		return gfx.ErrDeviceLost
	}
	b.Clears = append(b.Clears, color)
	return nil
}

// Submit records the draw
func (b *Backend) Submit(call gfx.DrawCall) {
	if b.Quiet {
		return
	}
	b.Calls = append(b.Calls, "Submit")
	b.Draws = append(b.Draws, call)
}

// SubmitSprite records the sprite
func (b *Backend) SubmitSprite(call gfx.SpriteCall) {
	if b.Quiet {
		return
	}
	b.Calls = append(b.Calls, "SubmitSprite")
	b.Sprites = append(b.Sprites, call)
}

// SubmitLines records the lines with a copy of their vertices
func (b *Backend) SubmitLines(call gfx.LineCall) {
	if b.Quiet {
		return
	}
	b.Calls = append(b.Calls, "SubmitLines")
	call.Vertices = append([]model.Vertex(nil), call.Vertices...)
	b.Lines = append(b.Lines, call)
}

// Present records the call
func (b *Backend) Present() error {
	if !b.Quiet {
		b.Calls = append(b.Calls, "Present")
	}
	return b.lost()
}

func (b *Backend) lost() error {
	if b.Lost {
		return gfx.ErrDeviceLost
	}
	return nil
}

// Release forgets the handle
func (b *Backend) Release(h gfx.Handle) {
	b.Calls = append(b.Calls, "Release")
	delete(b.Live, h)
}

// Destroy records the call
func (b *Backend) Destroy() {
	b.Calls = append(b.Calls, "Destroy")
	b.Destroyed = true
}
