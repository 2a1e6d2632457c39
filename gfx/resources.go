package gfx

import (
	"image"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/model"
)

// Mesh is a shared vertex and index buffer pair created from a mesh file
type Mesh struct {
	shared

	name         core.HashedName
	info         *model.DrawInfo
	vertexBuffer BufferHandle
	indexBuffer  BufferHandle
}

// Name is the hashed path the mesh was loaded from
func (m *Mesh) Name() core.HashedName { return m.name }

// DrawInfo is the parsed mesh file
func (m *Mesh) DrawInfo() *model.DrawInfo { return m.info }

// Material is a shared shading program, optionally with a texture
type Material struct {
	shared

	name    core.HashedName
	info    *model.MaterialInfo
	handle  MaterialHandle
	texture *Texture
}

// Name is the hashed path the material was loaded from
func (m *Material) Name() core.HashedName { return m.name }

// Color is the material tint
func (m *Material) Color() glm.Vec4 { return m.info.Color }

// Texture is the material texture, nil when it has none
func (m *Material) Texture() *Texture { return m.texture }

// Texture is a shared decoded image uploaded to the backend
type Texture struct {
	shared

	name   core.HashedName
	handle TextureHandle
	bounds image.Rectangle
}

// Name is the hashed path the texture was loaded from
func (t *Texture) Name() core.HashedName { return t.name }

// Bounds are the image bounds of the texture
func (t *Texture) Bounds() image.Rectangle { return t.bounds }

// SpriteDetails place a sprite on screen. Left, Top and Width are
// fractions of the screen, the height follows the source aspect.
// The source rectangle is split into a grid of frames.
type SpriteDetails struct {
	Left, Top, Width float32

	HorizontalFrames int
	VerticalFrames   int
}

// Sprite is a screen space quad showing one frame of a texture region.
// Sprites are not cached, each holds its own placement.
type Sprite struct {
	shared

	name    core.HashedName
	texture *Texture
	source  image.Rectangle
	details SpriteDetails
	height  float32
	frame   int
}

// Name is the hashed texture path of the sprite
func (s *Sprite) Name() core.HashedName { return s.name }

// Texture is the texture the sprite samples
func (s *Sprite) Texture() *Texture { return s.texture }

// Frames is the number of frames in the grid
func (s *Sprite) Frames() int {
	return s.details.HorizontalFrames * s.details.VerticalFrames
}

// SetFrame selects the grid cell to show, wrapping around
func (s *Sprite) SetFrame(frame int) {
	n := s.Frames()
	s.frame = ((frame % n) + n) % n
}

// Frame is the selected grid cell
func (s *Sprite) Frame() int { return s.frame }

// FrameRect is the texture region of the selected cell
func (s *Sprite) FrameRect() image.Rectangle {
	w := s.source.Dx() / s.details.HorizontalFrames
	h := s.source.Dy() / s.details.VerticalFrames
	col := s.frame % s.details.HorizontalFrames
	row := s.frame / s.details.HorizontalFrames
	min := s.source.Min.Add(image.Pt(col*w, row*h))
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(w, h))}
}

// SetPosition moves the sprite, coordinates are screen fractions
func (s *Sprite) SetPosition(left, top float32) {
	s.details.Left = left
	s.details.Top = top
}

func (s *Sprite) call() SpriteCall {
	return SpriteCall{
		Texture: s.texture.handle,
		Source:  s.FrameRect(),
		Left:    s.details.Left,
		Top:     s.details.Top,
		Width:   s.details.Width,
		Height:  s.height,
	}
}
