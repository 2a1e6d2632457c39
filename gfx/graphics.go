// Package gfx is the graphics facade. A System owns the graphics device,
// enforces the order of the frame protocol and deduplicates the meshes,
// materials and textures created from resource files.
//
// A frame is BeginFrame, an optional Begin3D with mesh submissions, an
// optional Begin2D with sprite submissions, then EndFrame. Out of order
// calls are rejected with ErrStateViolation; builds with the debug tag
// panic on them instead.
package gfx

import (
	"errors"
	"fmt"
	"image"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/model"
	"github.com/devblok/frameforge/resource"
)

// Stats are counters kept by a System
type Stats struct {
	Frames     uint64
	DeviceLost uint64
	Rejected   uint64

	// Submissions during the last frame
	DrawCalls   int
	SpriteCalls int
	LineCalls   int
}

// NewSystem creates the device through backend and returns a System in
// the Idle state. Resource paths are resolved with source.
func NewSystem(backend Backend, window Window, cfg core.GraphicsConfiguration, source resource.Source, logger log.FieldLogger) (*System, error) {
	logger = core.LoggerOrDefault(logger)
	if backend == nil || source == nil {
		return nil, fmt.Errorf("%w: backend and resource source are required", ErrInitialization)
	}

	device, err := backend.CreateDevice(window, DeviceConfiguration{
		Width:        cfg.ScreenWidth,
		Height:       cfg.ScreenHeight,
		Fullscreen:   cfg.Fullscreen,
		Antialiasing: cfg.Antialiasing,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInitialization, err)
	}

	s := &System{
		backend:   backend,
		source:    source,
		log:       logger,
		cfg:       cfg,
		device:    device,
		usage:     ComputeUsage(device),
		meshes:    newCache[*Mesh](),
		materials: newCache[*Material](),
		textures:  newCache[*Texture](),
	}
	s.SetCamera(DefaultView(), DefaultProjection(cfg.ScreenWidth, cfg.ScreenHeight))

	logger.WithFields(log.Fields{
		"device":     device.Name,
		"width":      cfg.ScreenWidth,
		"height":     cfg.ScreenHeight,
		"fullscreen": cfg.Fullscreen,
		"assertions": debugAssertions,
	}).Info("graphics device created")
	return s, nil
}

// System is the graphics facade. It is not safe for concurrent use.
type System struct {
	backend Backend
	source  resource.Source
	log     log.FieldLogger
	cfg     core.GraphicsConfiguration
	device  DeviceInfo
	usage   Usage

	state FrameState

	meshes    cache[*Mesh]
	materials cache[*Material]
	textures  cache[*Texture]

	view           glm.Mat4
	projection     glm.Mat4
	viewProjection glm.Mat4

	stats     Stats
	destroyed bool
}

// DefaultView looks at the origin from the positive z axis
func DefaultView() glm.Mat4 {
	return glm.LookAtV(glm.Vec3{0, 0, 5}, glm.Vec3{0, 0, 0}, glm.Vec3{0, 1, 0})
}

// DefaultProjection is a 45 degree perspective for the screen size
func DefaultProjection(width, height uint32) glm.Mat4 {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	return glm.Perspective(glm.DegToRad(45), aspect, 0.1, 100)
}

// SetCamera replaces the view and projection used by later Render calls
func (s *System) SetCamera(view, projection glm.Mat4) {
	s.view = view
	s.projection = projection
	s.viewProjection = projection.Mul4(view)
}

// State is the current frame state
func (s *System) State() FrameState {
	return s.state
}

// Device describes the created device
func (s *System) Device() DeviceInfo {
	return s.device
}

// ClearColor is the configured clear color
func (s *System) ClearColor() glm.Vec4 {
	return s.cfg.ClearColor
}

// Stats returns the counters
func (s *System) Stats() Stats {
	return s.stats
}

// CacheSizes returns the number of cached meshes, materials and textures
func (s *System) CacheSizes() (meshes, materials, textures int) {
	return s.meshes.len(), s.materials.len(), s.textures.len()
}

func (s *System) transition(op frameOp) (FrameState, error) {
	to, ok := next(s.state, op)
	if !ok {
		return s.state, s.violation(&StateError{Op: opNames[op], State: s.state})
	}
	return to, nil
}

// BeginFrame clears the render target and opens a frame. A lost
// device returns ErrDeviceLost and leaves the System Idle, nothing
// may be submitted then.
func (s *System) BeginFrame(clear glm.Vec4) error {
	to, err := s.transition(opBeginFrame)
	if err != nil {
		return err
	}

	if err := s.backend.Clear(clear); err != nil {
		if errors.Is(err, ErrDeviceLost) {
			s.stats.DeviceLost++
			s.log.WithField("frame", s.stats.Frames).Warn("device lost, frame skipped")
			return ErrDeviceLost
		}
		return err
	}

	s.state = to
	s.stats.DrawCalls = 0
	s.stats.SpriteCalls = 0
	s.stats.LineCalls = 0
	return nil
}

// Begin3D opens the 3D pass, reporting whether it did
func (s *System) Begin3D() bool {
	to, err := s.transition(opBegin3D)
	if err != nil {
		return false
	}
	s.state = to
	return true
}

// Begin2D opens the 2D pass, reporting whether it did
func (s *System) Begin2D() bool {
	to, err := s.transition(opBegin2D)
	if err != nil {
		return false
	}
	s.state = to
	return true
}

// Render submits one draw of mesh shaded with material. Draws reach
// the backend in call order.
func (s *System) Render(material *Material, mesh *Mesh, transform glm.Mat4) error {
	if _, err := s.transition(opRender); err != nil {
		return err
	}
	if material == nil || mesh == nil {
		return errors.New("gfx: Render without material or mesh")
	}

	call := DrawCall{
		Material:       material.handle,
		VertexBuffer:   mesh.vertexBuffer,
		IndexBuffer:    mesh.indexBuffer,
		VertexCount:    mesh.info.VertexCount,
		IndexCount:     mesh.info.IndexCount,
		PrimitiveCount: mesh.info.PrimitiveCount,
		Color:          material.info.Color,
		Model:          transform,
		ViewProjection: s.viewProjection,
	}
	if material.texture != nil {
		call.Texture = material.texture.handle
	}
	s.backend.Submit(call)
	s.stats.DrawCalls++
	return nil
}

// RenderSprite submits one sprite draw
func (s *System) RenderSprite(sprite *Sprite) error {
	if _, err := s.transition(opRenderSprite); err != nil {
		return err
	}
	if sprite == nil {
		return errors.New("gfx: RenderSprite without sprite")
	}
	s.backend.SubmitSprite(sprite.call())
	s.stats.SpriteCalls++
	return nil
}

// EndFrame presents the frame. The System is Idle afterwards even
// when presenting reports a lost device.
func (s *System) EndFrame() error {
	to, err := s.transition(opEndFrame)
	if err != nil {
		return err
	}
	s.state = to
	s.stats.Frames++

	if err := s.backend.Present(); err != nil {
		if errors.Is(err, ErrDeviceLost) {
			s.stats.DeviceLost++
			s.log.WithField("frame", s.stats.Frames).Warn("device lost while presenting")
			return ErrDeviceLost
		}
		return err
	}
	return nil
}

func (s *System) readResource(kind, path string) ([]byte, error) {
	data, err := s.source.ReadFile(path)
	if err != nil {
		return nil, &ResourceError{Kind: kind, Path: path, Err: err}
	}
	return data, nil
}

// CreateMesh returns the mesh loaded from path, sharing an already
// loaded one. The caller owns one reference and must Release it.
func (s *System) CreateMesh(path string) (*Mesh, error) {
	name := core.NewHashedName(path)
	if m, ok, err := s.meshes.lookup(name); err != nil {
		return nil, &ResourceError{Kind: "mesh", Path: path, Err: err}
	} else if ok {
		return m, nil
	}

	data, err := s.readResource("mesh", path)
	if err != nil {
		return nil, err
	}
	info, err := model.ParseDrawInfo(path, data)
	if err != nil {
		return nil, &ResourceError{Kind: "mesh", Path: path, Err: err}
	}

	vb, err := s.backend.CreateVertexBuffer(s.usage, info)
	if err != nil {
		return nil, &ResourceError{Kind: "mesh", Path: path, Err: err}
	}
	ib, err := s.backend.CreateIndexBuffer(s.usage, info)
	if err != nil {
		s.backend.Release(Handle(vb))
		return nil, &ResourceError{Kind: "mesh", Path: path, Err: err}
	}

	m := &Mesh{
		name:         name,
		info:         info,
		vertexBuffer: vb,
		indexBuffer:  ib,
	}
	m.shared = newShared(func() {
		s.releaseHandles(Handle(vb), Handle(ib))
	})
	s.meshes.insert(m)

	s.log.WithFields(log.Fields{
		"path":       path,
		"vertices":   info.VertexCount,
		"primitives": info.PrimitiveCount,
	}).Debug("mesh created")
	return m, nil
}

// CreateMaterial returns the material loaded from path, sharing an
// already loaded one. Shader code and the texture named by the
// material file are loaded with it.
func (s *System) CreateMaterial(path string) (*Material, error) {
	name := core.NewHashedName(path)
	if m, ok, err := s.materials.lookup(name); err != nil {
		return nil, &ResourceError{Kind: "material", Path: path, Err: err}
	} else if ok {
		return m, nil
	}

	data, err := s.readResource("material", path)
	if err != nil {
		return nil, err
	}
	info, err := model.ParseMaterialInfo(path, data)
	if err != nil {
		return nil, &ResourceError{Kind: "material", Path: path, Err: err}
	}
	if info.VertexShader != "" {
		if info.VertexShaderCode, err = s.readResource("shader", info.VertexShader); err != nil {
			return nil, err
		}
		if info.FragmentShaderCode, err = s.readResource("shader", info.FragmentShader); err != nil {
			return nil, err
		}
	}

	var texture *Texture
	if info.Texture != "" {
		if texture, err = s.CreateTexture(info.Texture); err != nil {
			return nil, err
		}
	}

	handle, err := s.backend.CreateMaterial(info)
	if err != nil {
		if texture != nil {
			texture.Release()
		}
		return nil, &ResourceError{Kind: "material", Path: path, Err: err}
	}

	m := &Material{
		name:    name,
		info:    info,
		handle:  handle,
		texture: texture,
	}
	m.shared = newShared(func() {
		s.releaseHandles(Handle(handle))
		if texture != nil {
			texture.Release()
		}
	})
	s.materials.insert(m)

	s.log.WithFields(log.Fields{
		"path":    path,
		"texture": info.Texture,
	}).Debug("material created")
	return m, nil
}

// CreateTexture returns the texture decoded from path, sharing an
// already loaded one
func (s *System) CreateTexture(path string) (*Texture, error) {
	name := core.NewHashedName(path)
	if t, ok, err := s.textures.lookup(name); err != nil {
		return nil, &ResourceError{Kind: "texture", Path: path, Err: err}
	} else if ok {
		return t, nil
	}

	data, err := s.readResource("texture", path)
	if err != nil {
		return nil, err
	}
	img, err := model.DecodeTexture(path, data)
	if err != nil {
		return nil, &ResourceError{Kind: "texture", Path: path, Err: err}
	}
	handle, err := s.backend.CreateTexture(img)
	if err != nil {
		return nil, &ResourceError{Kind: "texture", Path: path, Err: err}
	}

	t := &Texture{
		name:   name,
		handle: handle,
		bounds: img.Bounds(),
	}
	t.shared = newShared(func() {
		s.releaseHandles(Handle(handle))
	})
	s.textures.insert(t)

	s.log.WithFields(log.Fields{
		"path":   path,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("texture created")
	return t, nil
}

// CreateSprite creates a sprite showing texcoords of the texture at
// texturePath. An empty rectangle selects the whole texture. Frame
// counts below one are treated as one.
func (s *System) CreateSprite(texturePath string, texcoords image.Rectangle, details SpriteDetails) (*Sprite, error) {
	texture, err := s.CreateTexture(texturePath)
	if err != nil {
		return nil, err
	}

	if texcoords.Empty() {
		texcoords = texture.bounds
	}
	if !texcoords.In(texture.bounds) {
		texture.Release()
		return nil, &ResourceError{
			Kind: "sprite",
			Path: texturePath,
			Err:  fmt.Errorf("texcoords %v outside of texture %v", texcoords, texture.bounds),
		}
	}
	if details.HorizontalFrames < 1 {
		details.HorizontalFrames = 1
	}
	if details.VerticalFrames < 1 {
		details.VerticalFrames = 1
	}

	sp := &Sprite{
		name:    texture.name,
		texture: texture,
		source:  texcoords,
		details: details,
	}
	sp.height = s.spriteHeight(sp.FrameRect(), details.Width)
	sp.shared = newShared(texture.Release)
	return sp, nil
}

// spriteHeight keeps the aspect of a frame on a screen of any aspect
func (s *System) spriteHeight(frame image.Rectangle, width float32) float32 {
	if frame.Dx() == 0 || s.cfg.ScreenHeight == 0 {
		return width
	}
	screenAspect := float32(s.cfg.ScreenWidth) / float32(s.cfg.ScreenHeight)
	frameAspect := float32(frame.Dy()) / float32(frame.Dx())
	return width * frameAspect * screenAspect
}

func (s *System) releaseHandles(handles ...Handle) {
	if s.destroyed {
		return
	}
	for _, h := range handles {
		s.backend.Release(h)
	}
}

// Destroy drops the cache references, then destroys the device.
// Resources still held elsewhere lose their backend objects.
func (s *System) Destroy() {
	if s.destroyed {
		return
	}
	if s.state != Idle {
		s.log.WithField("state", s.state).Warn("destroyed inside a frame")
	}
	s.materials.clear()
	s.meshes.clear()
	s.textures.clear()
	s.destroyed = true
	s.backend.Destroy()
}
