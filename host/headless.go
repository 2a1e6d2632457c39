// Package host runs the frame loop on a window system: SDL for the
// Vulkan backend, ebiten or nothing at all for the raster backend.
package host

import (
	"context"
	"unsafe"

	"github.com/devblok/frameforge/core"
)

// Headless is a window that never shows anything
type Headless struct {
	Width, Height int
}

// Handle is nil
func (h Headless) Handle() unsafe.Pointer { return nil }

// Size implements gfx.Window
func (h Headless) Size() (int, int) { return h.Width, h.Height }

// Run calls frame on every fps tick until it returns false, ctx is
// done or frames frames were run. frames <= 0 does not limit.
func (h Headless) Run(ctx context.Context, t *core.Time, frames int, frame func() bool) error {
	for n := 0; frames <= 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.FpsTicker().C:
			t.Frames().Tick()
			if !frame() {
				return nil
			}
		}
	}
	return nil
}
