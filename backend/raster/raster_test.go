package raster_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/backend/raster"
	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/gfx/gfxtest"
)

func newSystem(c *qt.C, presented *[]*image.RGBA) (*gfx.System, *raster.Backend) {
	files := gfxtest.NewFiles(map[string]string{
		"meshes/triangle.mesh": gfxtest.Triangle,
		"materials/plain.mat":  gfxtest.Plain,
		"textures/solid.png":   gfxtest.PNG(4, 4),
	})
	backend := raster.New(nil, func(frame *image.RGBA) {
		if presented != nil {
			*presented = append(*presented, frame)
		}
	})
	sys, err := gfx.NewSystem(backend, gfxtest.Window{}, core.DefaultConfiguration().Graphics, files, nil)
	c.Assert(err, qt.IsNil)
	c.Cleanup(sys.Destroy)
	return sys, backend
}

func near(c *qt.C, got color.RGBA, want color.RGBA) {
	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	ok := diff(got.R, want.R) <= 2 && diff(got.G, want.G) <= 2 && diff(got.B, want.B) <= 2 && diff(got.A, want.A) <= 2
	c.Assert(ok, qt.IsTrue, qt.Commentf("got %v, want %v", got, want))
}

func TestDevice(t *testing.T) {
	c := qt.New(t)
	sys, _ := newSystem(c, nil)
	c.Assert(sys.Device().HardwareVertexProcessing, qt.IsFalse)

	_, err := raster.New(nil, nil).CreateDevice(nil, gfx.DeviceConfiguration{})
	c.Assert(err, qt.IsNotNil)

	backend := raster.New(nil, nil)
	_, err = backend.CreateDevice(gfxtest.Window{Width: 32, Height: 16}, gfx.DeviceConfiguration{})
	c.Assert(err, qt.IsNil)
	c.Assert(backend.Clear(glm.Vec4{}), qt.IsNil)
	c.Assert(backend.Present(), qt.IsNil)
	c.Assert(backend.Frame().Bounds(), qt.Equals, image.Rect(0, 0, 32, 16))
	backend.Destroy()
	c.Assert(backend.Clear(glm.Vec4{}), qt.ErrorIs, gfx.ErrDeviceLost)
}

func TestRenderMesh(t *testing.T) {
	c := qt.New(t)
	var frames []*image.RGBA
	sys, backend := newSystem(c, &frames)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	defer mesh.Release()
	material, err := sys.CreateMaterial("materials/plain.mat")
	c.Assert(err, qt.IsNil)
	defer material.Release()

	c.Assert(sys.BeginFrame(glm.Vec4{0, 0, 1, 1}), qt.IsNil)
	c.Assert(sys.Begin3D(), qt.IsTrue)
	c.Assert(sys.Render(material, mesh, glm.Ident4()), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)

	c.Assert(frames, qt.HasLen, 1)
	frame := backend.Frame()
	c.Assert(frame, qt.Equals, frames[0])
	c.Assert(frame.Bounds(), qt.Equals, image.Rect(0, 0, 640, 480))

	// the triangle covers the middle of the screen, the corners keep the clear color
	near(c, frame.RGBAAt(320, 260), color.RGBA{R: 255, A: 255})
	near(c, frame.RGBAAt(5, 5), color.RGBA{B: 255, A: 255})
}

func TestRenderBehindCamera(t *testing.T) {
	c := qt.New(t)
	sys, backend := newSystem(c, nil)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	defer mesh.Release()
	material, err := sys.CreateMaterial("materials/plain.mat")
	c.Assert(err, qt.IsNil)
	defer material.Release()

	c.Assert(sys.BeginFrame(glm.Vec4{0, 0, 0, 1}), qt.IsNil)
	c.Assert(sys.Render(material, mesh, glm.Translate3D(0, 0, 10)), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	near(c, backend.Frame().RGBAAt(320, 260), color.RGBA{A: 255})
}

func TestRenderSprite(t *testing.T) {
	c := qt.New(t)
	sys, backend := newSystem(c, nil)

	sprite, err := sys.CreateSprite("textures/solid.png", image.Rect(0, 0, 1, 1), gfx.SpriteDetails{
		Left:  0.5,
		Top:   0.5,
		Width: 0.25,
	})
	c.Assert(err, qt.IsNil)
	defer sprite.Release()

	c.Assert(sys.BeginFrame(glm.Vec4{0, 0, 0, 1}), qt.IsNil)
	c.Assert(sys.Begin2D(), qt.IsTrue)
	c.Assert(sys.RenderSprite(sprite), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)

	frame := backend.Frame()
	// the source pixel at 0,0 is pure blue
	near(c, frame.RGBAAt(360, 280), color.RGBA{B: 255, A: 255})
	near(c, frame.RGBAAt(100, 100), color.RGBA{A: 255})
}

func TestReleaseAndScreenshot(t *testing.T) {
	c := qt.New(t)
	sys, backend := newSystem(c, nil)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	c.Assert(backend.Live(), qt.Equals, 2)
	mesh.Release()
	c.Assert(backend.Live(), qt.Equals, 2)

	c.Assert(sys.BeginFrame(glm.Vec4{1, 1, 1, 1}), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(backend.SavePNG(filepath.Join(c.TempDir(), "frame.png")), qt.IsNil)
}

func TestRenderLines(t *testing.T) {
	c := qt.New(t)
	var frames []*image.RGBA
	sys, backend := newSystem(c, &frames)

	lines, err := sys.CreateDebugLines("axes", 2)
	c.Assert(err, qt.IsNil)
	c.Assert(backend.Live(), qt.Equals, 1)

	c.Assert(lines.Add(gfx.Line{From: glm.Vec3{-1, 0, 0}, To: glm.Vec3{1, 0, 0}, Color: glm.Vec4{1, 0, 0, 1}}), qt.IsTrue)
	// behind the camera
	c.Assert(lines.Add(gfx.Line{From: glm.Vec3{0, 0, 0}, To: glm.Vec3{0, 0, 10}, Color: glm.Vec4{0, 1, 0, 1}}), qt.IsTrue)

	c.Assert(sys.BeginFrame(glm.Vec4{0, 0, 0, 1}), qt.IsNil)
	c.Assert(sys.Begin3D(), qt.IsTrue)
	c.Assert(sys.RenderLines(lines), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(frames, qt.HasLen, 1)

	frame := frames[0]
	center := frame.Bounds().Dx() / 2
	middle := frame.Bounds().Dy() / 2
	red := false
	for y := middle - 2; y <= middle+2; y++ {
		px := frame.RGBAAt(center, y)
		if px.R > 64 && px.G == 0 {
			red = true
		}
	}
	c.Assert(red, qt.IsTrue)

	lines.Release()
	c.Assert(backend.Live(), qt.Equals, 0)
}
