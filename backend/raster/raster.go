// Package raster is a software gfx.Backend drawing with gogpu/gg. Meshes
// are projected on the CPU and filled triangle by triangle, back to front
// within each draw. Debug lines are stroked. Sprites are blitted with
// DrawImageEx. It needs no GPU
// and serves the headless and ebiten hosts.
package raster

import (
	"errors"
	"fmt"
	"image"
	"sort"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gg"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/model"
)

// ErrUnknownHandle is returned for handles the backend did not create
var ErrUnknownHandle = errors.New("raster: unknown handle")

// New creates a raster backend. Rendered frames are passed to
// onPresent, which may be nil.
func New(logger log.FieldLogger, onPresent func(frame *image.RGBA)) *Backend {
	return &Backend{
		log:       core.LoggerOrDefault(logger),
		onPresent: onPresent,
		objects:   make(map[gfx.Handle]any),
	}
}

// Backend rasterises frames into an in-memory image
type Backend struct {
	log       log.FieldLogger
	onPresent func(frame *image.RGBA)

	ctx           *gg.Context
	width, height int

	objects map[gfx.Handle]any
	last    gfx.Handle

	frame *image.RGBA
}

var _ gfx.Backend = (*Backend)(nil)

type buffer struct {
	vertices []model.Vertex
	indices  []uint32
}

type material struct {
	color glm.Vec4
}

type texture struct {
	buf     *gg.ImageBuf
	average glm.Vec4
}

// CreateDevice allocates the render target. The window only
// provides the size when the configuration has none.
func (b *Backend) CreateDevice(window gfx.Window, cfg gfx.DeviceConfiguration) (gfx.DeviceInfo, error) {
	width, height := int(cfg.Width), int(cfg.Height)
	if (width == 0 || height == 0) && window != nil {
		width, height = window.Size()
	}
	if width <= 0 || height <= 0 {
		return gfx.DeviceInfo{}, fmt.Errorf("raster: invalid target size %dx%d", width, height)
	}

	b.ctx = gg.NewContext(width, height)
	b.width, b.height = width, height
	b.log.WithFields(log.Fields{
		"width":  width,
		"height": height,
	}).Debug("raster target created")

	return gfx.DeviceInfo{Name: "gg software rasteriser"}, nil
}

func (b *Backend) add(obj any) gfx.Handle {
	b.last++
	b.objects[b.last] = obj
	return b.last
}

// CreateVertexBuffer keeps the decoded vertices
func (b *Backend) CreateVertexBuffer(_ gfx.Usage, info *model.DrawInfo) (gfx.BufferHandle, error) {
	return gfx.BufferHandle(b.add(&buffer{vertices: info.Vertices()})), nil
}

// CreateIndexBuffer keeps the decoded indices
func (b *Backend) CreateIndexBuffer(_ gfx.Usage, info *model.DrawInfo) (gfx.BufferHandle, error) {
	return gfx.BufferHandle(b.add(&buffer{indices: info.Indices()})), nil
}

// CreateMaterial keeps the material color. Shader programs cannot
// run here, materials with shaders are drawn flat.
func (b *Backend) CreateMaterial(info *model.MaterialInfo) (gfx.MaterialHandle, error) {
	if info.VertexShader != "" {
		b.log.WithField("material", info.Name).Debug("shaders ignored by the raster backend")
	}
	return gfx.MaterialHandle(b.add(&material{color: info.Color})), nil
}

// CreateTexture converts img for blitting and records its average
// color, used to tint textured meshes
func (b *Backend) CreateTexture(img image.Image) (gfx.TextureHandle, error) {
	return gfx.TextureHandle(b.add(&texture{
		buf:     gg.ImageBufFromImage(img),
		average: averageColor(img),
	})), nil
}

func averageColor(img image.Image) glm.Vec4 {
	bounds := img.Bounds()
	n := float32(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return glm.Vec4{1, 1, 1, 1}
	}
	var sum glm.Vec4
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			sum = sum.Add(glm.Vec4{float32(r), float32(g), float32(b), float32(a)})
		}
	}
	return sum.Mul(1 / (n * 0xffff))
}

// CreateLineBuffer needs no storage, lines are stroked as submitted
func (b *Backend) CreateLineBuffer(_ int) (gfx.BufferHandle, error) {
	return gfx.BufferHandle(b.add(&buffer{})), nil
}

// Clear starts a frame
func (b *Backend) Clear(color glm.Vec4) error {
	if b.ctx == nil {
		return gfx.ErrDeviceLost
	}
	b.ctx.ClearWithColor(rgba(color))
	return nil
}

func rgba(c glm.Vec4) gg.RGBA {
	return gg.RGBA{
		R: float64(c[0]),
		G: float64(c[1]),
		B: float64(c[2]),
		A: float64(c[3]),
	}
}

type triangle struct {
	points [3]glm.Vec2
	depth  float32
	color  glm.Vec4
}

// Submit projects and fills the triangles of a draw. Triangles
// crossing the near plane are dropped.
func (b *Backend) Submit(call gfx.DrawCall) {
	vb, vok := b.objects[gfx.Handle(call.VertexBuffer)].(*buffer)
	ib, iok := b.objects[gfx.Handle(call.IndexBuffer)].(*buffer)
	if !vok || !iok {
		b.log.WithField("call", call).Warn("draw with unknown buffers skipped")
		return
	}

	tint := call.Color
	if tex, ok := b.objects[gfx.Handle(call.Texture)].(*texture); ok {
		tint = mulVec4(tint, tex.average)
	}

	mvp := call.ViewProjection.Mul4(call.Model)
	tris := make([]triangle, 0, len(ib.indices)/3)
	for idx := 0; idx+2 < len(ib.indices); idx += 3 {
		var (
			tri     triangle
			visible = true
			color   glm.Vec4
		)
		for corner := 0; corner < 3; corner++ {
			v := vb.vertices[ib.indices[idx+corner]]
			clip := mvp.Mul4x1(v.Pos.Vec4(1))
			if clip.W() <= 0 {
				visible = false
				break
			}
			ndc := clip.Vec3().Mul(1 / clip.W())
			tri.points[corner] = b.toScreen(ndc)
			tri.depth += ndc.Z() / 3
			color = color.Add(v.Color.Mul(1.0 / 3))
		}
		if !visible {
			continue
		}
		tri.color = mulVec4(color, tint)
		tris = append(tris, tri)
	}

	sort.SliceStable(tris, func(i, j int) bool {
		return tris[i].depth > tris[j].depth
	})
	for _, tri := range tris {
		b.fill(tri)
	}
}

func (b *Backend) toScreen(ndc glm.Vec3) glm.Vec2 {
	return glm.Vec2{
		(ndc.X() + 1) / 2 * float32(b.width),
		(1 - ndc.Y()) / 2 * float32(b.height),
	}
}

func (b *Backend) fill(tri triangle) {
	c := tri.color
	b.ctx.SetRGBA(float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3]))
	b.ctx.MoveTo(float64(tri.points[0].X()), float64(tri.points[0].Y()))
	b.ctx.LineTo(float64(tri.points[1].X()), float64(tri.points[1].Y()))
	b.ctx.LineTo(float64(tri.points[2].X()), float64(tri.points[2].Y()))
	b.ctx.ClosePath()
	if err := b.ctx.Fill(); err != nil {
		b.log.WithError(err).Warn("triangle fill failed")
	}
}

func mulVec4(a, b glm.Vec4) glm.Vec4 {
	return glm.Vec4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}

// SubmitSprite blits the source rectangle of a texture
func (b *Backend) SubmitSprite(call gfx.SpriteCall) {
	tex, ok := b.objects[gfx.Handle(call.Texture)].(*texture)
	if !ok {
		b.log.WithField("texture", call.Texture).Warn("sprite with unknown texture skipped")
		return
	}
	src := call.Source
	b.ctx.DrawImageEx(tex.buf, gg.DrawImageOptions{
		X:             float64(call.Left) * float64(b.width),
		Y:             float64(call.Top) * float64(b.height),
		DstWidth:      float64(call.Width) * float64(b.width),
		DstHeight:     float64(call.Height) * float64(b.height),
		SrcRect:       &src,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

// SubmitLines strokes each line one pixel wide. Lines with an end
// behind the camera are dropped.
func (b *Backend) SubmitLines(call gfx.LineCall) {
	b.ctx.SetLineWidth(1)
	for idx := 0; idx+1 < len(call.Vertices); idx += 2 {
		from, to := call.Vertices[idx], call.Vertices[idx+1]
		p0, ok0 := b.project(call.ViewProjection, from.Pos)
		p1, ok1 := b.project(call.ViewProjection, to.Pos)
		if !ok0 || !ok1 {
			continue
		}
		c := from.Color
		b.ctx.SetRGBA(float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3]))
		b.ctx.DrawLine(float64(p0.X()), float64(p0.Y()), float64(p1.X()), float64(p1.Y()))
		if err := b.ctx.Stroke(); err != nil {
			b.log.WithError(err).Warn("line stroke failed")
		}
	}
}

func (b *Backend) project(mvp glm.Mat4, pos glm.Vec3) (glm.Vec2, bool) {
	clip := mvp.Mul4x1(pos.Vec4(1))
	if clip.W() <= 0 {
		return glm.Vec2{}, false
	}
	return b.toScreen(clip.Vec3().Mul(1 / clip.W())), true
}

// Present snapshots the target and hands it to the present callback
func (b *Backend) Present() error {
	if b.ctx == nil {
		return gfx.ErrDeviceLost
	}
	frame, ok := b.ctx.Image().(*image.RGBA)
	if !ok {
		return fmt.Errorf("raster: unexpected image type %T", b.ctx.Image())
	}
	b.frame = frame
	if b.onPresent != nil {
		b.onPresent(frame)
	}
	return nil
}

// Frame is the last presented frame, nil before the first one
func (b *Backend) Frame() *image.RGBA {
	return b.frame
}

// SavePNG writes the current target to path
func (b *Backend) SavePNG(path string) error {
	if b.ctx == nil {
		return gfx.ErrDeviceLost
	}
	return b.ctx.SavePNG(path)
}

// Release forgets an object
func (b *Backend) Release(h gfx.Handle) {
	if _, ok := b.objects[h]; !ok {
		b.log.WithError(ErrUnknownHandle).WithField("handle", h).Debug("release ignored")
		return
	}
	delete(b.objects, h)
}

// Live is the number of objects not yet released
func (b *Backend) Live() int {
	return len(b.objects)
}

// Destroy frees the render target
func (b *Backend) Destroy() {
	if b.ctx != nil {
		b.ctx.Close()
		b.ctx = nil
	}
	b.objects = make(map[gfx.Handle]any)
}
