//go:build !debug

package gfx_test

import (
	"errors"
	"image"
	"io/fs"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/gfx/gfxtest"
)

func testFiles() *gfxtest.Files {
	return gfxtest.NewFiles(map[string]string{
		"meshes/triangle.mesh": gfxtest.Triangle,
		"meshes/broken.mesh":   `return { vertexCount = 4, indexCount = 3, vertices = {}, indices = { 0, 1, 2 } }`,
		"materials/plain.mat":  gfxtest.Plain,
		"materials/brick.mat":  `return { texture = "textures/brick.png", color = { 0.5, 0.5, 0.5, 1 } }`,
		"materials/lost.mat":   `return { texture = "textures/missing.png" }`,
		"materials/shaded.mat": `return { vertexShader = "shaders/a.vert.spv", fragmentShader = "shaders/a.frag.spv" }`,
		"shaders/a.vert.spv":   "vert",
		"shaders/a.frag.spv":   "frag",
		"textures/brick.png":   gfxtest.PNG(8, 8),
		"textures/sheet.png":   gfxtest.PNG(64, 32),
	})
}

func newSystem(c *qt.C) (*gfx.System, *gfxtest.Backend, *gfxtest.Files) {
	backend := &gfxtest.Backend{}
	files := testFiles()
	logger, _ := test.NewNullLogger()

	cfg := core.DefaultConfiguration().Graphics
	sys, err := gfx.NewSystem(backend, gfxtest.Window{Width: 640, Height: 480}, cfg, files, logger)
	c.Assert(err, qt.IsNil)
	c.Cleanup(sys.Destroy)
	return sys, backend, files
}

func TestNewSystem(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	c.Assert(sys.State(), qt.Equals, gfx.Idle)
	c.Assert(sys.Device().Name, qt.Equals, "gfxtest")
	c.Assert(backend.Calls, qt.DeepEquals, []string{"CreateDevice"})
}

func TestNewSystemDeviceFailure(t *testing.T) {
	c := qt.New(t)
	backend := &gfxtest.Backend{Fail: map[string]bool{"CreateDevice": true}}

	_, err := gfx.NewSystem(backend, gfxtest.Window{}, core.DefaultConfiguration().Graphics, testFiles(), nil)
	c.Assert(err, qt.ErrorIs, gfx.ErrInitialization)
}

func TestUsage(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.ComputeUsage(gfx.DeviceInfo{HardwareVertexProcessing: true}), qt.Equals, gfx.UsageWriteOnly)
	c.Assert(gfx.ComputeUsage(gfx.DeviceInfo{}), qt.Equals, gfx.UsageWriteOnly|gfx.UsageSoftwareProcessing)

	backend := &gfxtest.Backend{Software: true}
	sys, err := gfx.NewSystem(backend, gfxtest.Window{}, core.DefaultConfiguration().Graphics, testFiles(), nil)
	c.Assert(err, qt.IsNil)
	defer sys.Destroy()

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	defer mesh.Release()
	c.Assert(backend.Usage, qt.Equals, gfx.UsageWriteOnly|gfx.UsageSoftwareProcessing)
}

func TestFrame(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	material, err := sys.CreateMaterial("materials/plain.mat")
	c.Assert(err, qt.IsNil)
	sprite, err := sys.CreateSprite("textures/brick.png", image.Rectangle{}, gfx.SpriteDetails{Width: 0.25})
	c.Assert(err, qt.IsNil)
	backend.Reset()

	clear := glm.Vec4{0, 0, 0.2, 1}
	c.Assert(sys.BeginFrame(clear), qt.IsNil)
	c.Assert(sys.State(), qt.Equals, gfx.InFrame)
	c.Assert(sys.Begin3D(), qt.IsTrue)
	c.Assert(sys.Render(material, mesh, glm.Translate3D(1, 0, 0)), qt.IsNil)
	c.Assert(sys.Render(material, mesh, glm.Ident4()), qt.IsNil)
	c.Assert(sys.Begin2D(), qt.IsTrue)
	c.Assert(sys.RenderSprite(sprite), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(sys.State(), qt.Equals, gfx.Idle)

	c.Assert(backend.Calls, qt.DeepEquals, []string{"Clear", "Submit", "Submit", "SubmitSprite", "Present"})
	c.Assert(backend.Clears, qt.DeepEquals, []glm.Vec4{clear})
	c.Assert(backend.Draws[0].Model, qt.Equals, glm.Translate3D(1, 0, 0))
	c.Assert(backend.Draws[0].Color, qt.Equals, glm.Vec4{1, 0, 0, 1})
	c.Assert(backend.Draws[0].PrimitiveCount, qt.Equals, uint32(1))

	stats := sys.Stats()
	c.Assert(stats.Frames, qt.Equals, uint64(1))
	c.Assert(stats.DrawCalls, qt.Equals, 2)
	c.Assert(stats.SpriteCalls, qt.Equals, 1)
}

func TestEndFrameFromEveryState(t *testing.T) {
	c := qt.New(t)
	sys, _, _ := newSystem(c)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.Begin3D(), qt.IsTrue)
	c.Assert(sys.EndFrame(), qt.IsNil)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.Begin2D(), qt.IsTrue)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(sys.State(), qt.Equals, gfx.Idle)
}

func TestStateViolations(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	material, err := sys.CreateMaterial("materials/plain.mat")
	c.Assert(err, qt.IsNil)
	sprite, err := sys.CreateSprite("textures/brick.png", image.Rectangle{}, gfx.SpriteDetails{Width: 0.25})
	c.Assert(err, qt.IsNil)
	backend.Reset()

	// nothing is accepted while idle
	err = sys.Render(material, mesh, glm.Ident4())
	c.Assert(err, qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.RenderSprite(sprite), qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.EndFrame(), qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.Begin3D(), qt.IsFalse)
	c.Assert(sys.Begin2D(), qt.IsFalse)
	c.Assert(backend.Calls, qt.HasLen, 0)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	err = sys.BeginFrame(glm.Vec4{})
	c.Assert(err, qt.ErrorIs, gfx.ErrStateViolation)
	var stateErr *gfx.StateError
	c.Assert(errors.As(err, &stateErr), qt.IsTrue)
	c.Assert(stateErr.State, qt.Equals, gfx.InFrame)
	c.Assert(sys.State(), qt.Equals, gfx.InFrame)

	// no sprites in the 3D pass and no meshes in the 2D pass
	c.Assert(sys.Begin3D(), qt.IsTrue)
	c.Assert(sys.Begin3D(), qt.IsFalse)
	c.Assert(sys.RenderSprite(sprite), qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.Begin2D(), qt.IsTrue)
	c.Assert(sys.Begin3D(), qt.IsFalse)
	c.Assert(sys.Render(material, mesh, glm.Ident4()), qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.EndFrame(), qt.IsNil)

	c.Assert(backend.Count("Submit"), qt.Equals, 0)
	c.Assert(backend.Count("SubmitSprite"), qt.Equals, 0)
	c.Assert(sys.Stats().Rejected, qt.Equals, uint64(10))
}

func TestRejectedCallsAreLogged(t *testing.T) {
	c := qt.New(t)
	logger, hook := test.NewNullLogger()
	sys, err := gfx.NewSystem(&gfxtest.Backend{}, gfxtest.Window{}, core.DefaultConfiguration().Graphics, testFiles(), logger)
	c.Assert(err, qt.IsNil)
	defer sys.Destroy()

	c.Assert(sys.EndFrame(), qt.ErrorIs, gfx.ErrStateViolation)
	entry := hook.LastEntry()
	c.Assert(entry, qt.IsNotNil)
	c.Assert(entry.Level, qt.Equals, logrus.WarnLevel)
	c.Assert(entry.Message, qt.Equals, "rejected EndFrame")
	c.Assert(entry.Data["state"], qt.Equals, gfx.Idle)
}

func TestDeviceLost(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	backend.LoseDevice(true)
	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.ErrorIs, gfx.ErrDeviceLost)
	c.Assert(sys.State(), qt.Equals, gfx.Idle)
	c.Assert(sys.Begin3D(), qt.IsFalse)

	backend.LoseDevice(false)
	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	backend.LoseDevice(true)
	c.Assert(sys.EndFrame(), qt.ErrorIs, gfx.ErrDeviceLost)
	c.Assert(sys.State(), qt.Equals, gfx.Idle)
	c.Assert(sys.Stats().DeviceLost, qt.Equals, uint64(2))

	backend.LoseDevice(false)
	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
}

func TestMeshCache(t *testing.T) {
	c := qt.New(t)
	sys, backend, files := newSystem(c)

	first, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	second, err := sys.CreateMesh("meshes\\triangle.mesh")
	c.Assert(err, qt.IsNil)

	c.Assert(second, qt.Equals, first)
	c.Assert(files.Reads["meshes/triangle.mesh"], qt.Equals, 1)
	c.Assert(backend.Count("CreateVertexBuffer"), qt.Equals, 1)
	c.Assert(backend.Count("CreateIndexBuffer"), qt.Equals, 1)
	// two holders and the cache
	c.Assert(first.Refs(), qt.Equals, 3)
	c.Assert(first.DrawInfo().VertexCount, qt.Equals, uint32(3))

	first.Release()
	second.Release()
	c.Assert(first.Refs(), qt.Equals, 1)
	c.Assert(backend.Live, qt.HasLen, 2)

	meshes, _, _ := sys.CacheSizes()
	c.Assert(meshes, qt.Equals, 1)
}

func TestMeshNamesAreCaseSensitive(t *testing.T) {
	c := qt.New(t)
	sys, _, _ := newSystem(c)

	// the answer must not depend on what was loaded before
	_, err := sys.CreateMesh("MESHES/Triangle.mesh")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	defer mesh.Release()

	_, err = sys.CreateMesh("MESHES/Triangle.mesh")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	meshes, _, _ := sys.CacheSizes()
	c.Assert(meshes, qt.Equals, 1)
}

func TestMeshLoadFailures(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	_, err := sys.CreateMesh("meshes/missing.mesh")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)
	c.Assert(err, qt.ErrorIs, fs.ErrNotExist)
	var resErr *gfx.ResourceError
	c.Assert(errors.As(err, &resErr), qt.IsTrue)
	c.Assert(resErr.Path, qt.Equals, "meshes/missing.mesh")

	_, err = sys.CreateMesh("meshes/broken.mesh")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	_, err = sys.CreateMesh("meshes/triangle.obj")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	meshes, _, _ := sys.CacheSizes()
	c.Assert(meshes, qt.Equals, 0)
	c.Assert(backend.Count("CreateVertexBuffer"), qt.Equals, 0)
}

func TestMeshIndexBufferFailure(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)
	backend.Fail = map[string]bool{"CreateIndexBuffer": true}

	_, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)
	c.Assert(err, qt.ErrorIs, gfxtest.ErrInjected)
	c.Assert(backend.Live, qt.HasLen, 0)

	backend.Fail = nil
	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	mesh.Release()
}

func TestMaterials(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	brick, err := sys.CreateMaterial("materials/brick.mat")
	c.Assert(err, qt.IsNil)
	c.Assert(brick.Texture(), qt.IsNotNil)
	c.Assert(brick.Texture().Bounds(), qt.Equals, image.Rect(0, 0, 8, 8))
	c.Assert(brick.Color(), qt.Equals, glm.Vec4{0.5, 0.5, 0.5, 1})

	again, err := sys.CreateMaterial("materials/brick.mat")
	c.Assert(err, qt.IsNil)
	c.Assert(again, qt.Equals, brick)
	c.Assert(backend.Count("CreateMaterial"), qt.Equals, 1)
	c.Assert(backend.Count("CreateTexture"), qt.Equals, 1)

	plain, err := sys.CreateMaterial("materials/plain.mat")
	c.Assert(err, qt.IsNil)
	c.Assert(plain.Texture(), qt.IsNil)

	shaded, err := sys.CreateMaterial("materials/shaded.mat")
	c.Assert(err, qt.IsNil)
	c.Assert(shaded.Texture(), qt.IsNil)

	_, err = sys.CreateMaterial("materials/lost.mat")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)
	_, materials, textures := sys.CacheSizes()
	c.Assert(materials, qt.Equals, 3)
	c.Assert(textures, qt.Equals, 1)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	c.Assert(sys.Render(brick, mesh, glm.Ident4()), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(backend.Draws[0].Texture, qt.Not(qt.Equals), gfx.TextureHandle(0))
}

func TestMaterialBackendFailureReleasesTexture(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)
	backend.Fail = map[string]bool{"CreateMaterial": true}

	_, err := sys.CreateMaterial("materials/brick.mat")
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	// the texture stays cached, only the material reference is gone
	texture, err := sys.CreateTexture("textures/brick.png")
	c.Assert(err, qt.IsNil)
	c.Assert(texture.Refs(), qt.Equals, 2)
	texture.Release()
}

func TestDestroyReleasesEverything(t *testing.T) {
	c := qt.New(t)
	backend := &gfxtest.Backend{}
	sys, err := gfx.NewSystem(backend, gfxtest.Window{}, core.DefaultConfiguration().Graphics, testFiles(), nil)
	c.Assert(err, qt.IsNil)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	material, err := sys.CreateMaterial("materials/brick.mat")
	c.Assert(err, qt.IsNil)
	mesh.Release()
	material.Release()
	c.Assert(backend.Live, qt.HasLen, 4)

	sys.Destroy()
	c.Assert(backend.Live, qt.HasLen, 0)
	c.Assert(backend.Destroyed, qt.IsTrue)
	c.Assert(backend.Calls[len(backend.Calls)-1], qt.Equals, "Destroy")
}

func TestSprites(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	sprite, err := sys.CreateSprite("textures/sheet.png", image.Rectangle{}, gfx.SpriteDetails{
		Left:             0.1,
		Top:              0.2,
		Width:            0.25,
		HorizontalFrames: 4,
		VerticalFrames:   2,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(sprite.Frames(), qt.Equals, 8)
	c.Assert(sprite.FrameRect(), qt.Equals, image.Rect(0, 0, 16, 16))

	sprite.SetFrame(5)
	c.Assert(sprite.FrameRect(), qt.Equals, image.Rect(16, 16, 32, 32))
	sprite.SetFrame(9)
	c.Assert(sprite.Frame(), qt.Equals, 1)
	sprite.SetFrame(-1)
	c.Assert(sprite.Frame(), qt.Equals, 7)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.RenderSprite(sprite), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)

	call := backend.Sprites[0]
	c.Assert(call.Source, qt.Equals, image.Rect(48, 16, 64, 32))
	c.Assert(call.Left, qt.Equals, float32(0.1))
	c.Assert(call.Top, qt.Equals, float32(0.2))
	// square frame on a 4:3 screen
	c.Assert(math.Abs(float64(call.Height)-0.25*640/480) < 1e-6, qt.IsTrue, qt.Commentf("height %v", call.Height))

	// sprites share the texture
	other, err := sys.CreateSprite("textures/sheet.png", image.Rect(0, 0, 32, 32), gfx.SpriteDetails{Width: 0.1})
	c.Assert(err, qt.IsNil)
	c.Assert(other.Texture(), qt.Equals, sprite.Texture())
	c.Assert(backend.Count("CreateTexture"), qt.Equals, 1)

	_, err = sys.CreateSprite("textures/sheet.png", image.Rect(0, 0, 128, 128), gfx.SpriteDetails{})
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	texture := sprite.Texture()
	c.Assert(texture.Refs(), qt.Equals, 3)
	sprite.Release()
	other.Release()
	c.Assert(texture.Refs(), qt.Equals, 1)
}

func TestCamera(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	mesh, err := sys.CreateMesh("meshes/triangle.mesh")
	c.Assert(err, qt.IsNil)
	material, err := sys.CreateMaterial("materials/plain.mat")
	c.Assert(err, qt.IsNil)

	view := glm.LookAtV(glm.Vec3{0, 3, 3}, glm.Vec3{}, glm.Vec3{0, 1, 0})
	projection := glm.Ortho(-1, 1, -1, 1, 0.1, 10)
	sys.SetCamera(view, projection)

	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.Render(material, mesh, glm.Ident4()), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(backend.Draws[0].ViewProjection, qt.Equals, projection.Mul4(view))
}

func TestDebugLines(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)

	_, err := sys.CreateDebugLines("none", 0)
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)

	lines, err := sys.CreateDebugLines("axes", 2)
	c.Assert(err, qt.IsNil)
	c.Assert(lines.Name().Label(), qt.Equals, "axes")
	c.Assert(lines.Cap(), qt.Equals, 2)

	x := gfx.Line{From: glm.Vec3{0, 0, 0}, To: glm.Vec3{1, 0, 0}, Color: glm.Vec4{1, 0, 0, 1}}
	y := gfx.Line{From: glm.Vec3{0, 0, 0}, To: glm.Vec3{0, 1, 0}, Color: glm.Vec4{0, 1, 0, 1}}
	c.Assert(lines.Add(x), qt.IsTrue)
	c.Assert(lines.Add(y), qt.IsTrue)
	c.Assert(lines.Add(x), qt.IsFalse)
	c.Assert(lines.Len(), qt.Equals, 2)

	// only legal where meshes are
	c.Assert(sys.RenderLines(lines), qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.Begin3D(), qt.IsTrue)
	c.Assert(sys.RenderLines(lines), qt.IsNil)
	c.Assert(sys.Begin2D(), qt.IsTrue)
	c.Assert(sys.RenderLines(lines), qt.ErrorIs, gfx.ErrStateViolation)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(sys.Stats().LineCalls, qt.Equals, 1)

	c.Assert(backend.Lines, qt.HasLen, 1)
	call := backend.Lines[0]
	c.Assert(call.Vertices, qt.HasLen, 4)
	c.Assert(call.Vertices[1].Pos, qt.Equals, x.To)
	c.Assert(call.Vertices[3].Color, qt.Equals, y.Color)
	want := gfx.DefaultProjection(640, 480).Mul4(gfx.DefaultView())
	c.Assert(call.ViewProjection, qt.Equals, want)

	lines.Reset()
	c.Assert(sys.BeginFrame(glm.Vec4{}), qt.IsNil)
	c.Assert(sys.RenderLines(lines), qt.IsNil)
	c.Assert(sys.EndFrame(), qt.IsNil)
	c.Assert(backend.Lines, qt.HasLen, 1)

	c.Assert(backend.Live, qt.HasLen, 1)
	lines.Release()
	c.Assert(backend.Live, qt.HasLen, 0)
}

func TestDebugLinesBackendFailure(t *testing.T) {
	c := qt.New(t)
	sys, backend, _ := newSystem(c)
	backend.Fail = map[string]bool{"CreateLineBuffer": true}

	_, err := sys.CreateDebugLines("axes", 4)
	c.Assert(err, qt.ErrorIs, gfx.ErrResourceLoad)
	c.Assert(err, qt.ErrorIs, gfxtest.ErrInjected)
}
