// Package registry keeps the set of things drawn every frame: entities
// bound to a material and a mesh, and screen space sprites. Bindings live
// in fixed capacity pools and are drawn in the order they were added.
package registry

import (
	"errors"
	"fmt"
	"image"

	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/utility/pool"
)

// ErrPoolExhausted is returned when a binding pool is full
var ErrPoolExhausted = pool.ErrExhausted

// Graphics is the part of gfx.System the registry drives
type Graphics interface {
	CreateMesh(path string) (*gfx.Mesh, error)
	CreateMaterial(path string) (*gfx.Material, error)
	CreateSprite(texturePath string, texcoords image.Rectangle, details gfx.SpriteDetails) (*gfx.Sprite, error)
	CreateDebugLines(name string, maxLines int) (*gfx.DebugLines, error)

	BeginFrame(clear glm.Vec4) error
	Begin3D() bool
	Begin2D() bool
	Render(material *gfx.Material, mesh *gfx.Mesh, transform glm.Mat4) error
	RenderSprite(sprite *gfx.Sprite) error
	RenderLines(lines *gfx.DebugLines) error
	EndFrame() error
}

var _ Graphics = (*gfx.System)(nil)

// Renderable binds an entity to the resources it is drawn with
type Renderable struct {
	Entity   Entity
	Material *gfx.Material
	Mesh     *gfx.Mesh
}

func (r *Renderable) release() {
	r.Material.Release()
	r.Mesh.Release()
}

// New creates a registry with pools sized by cfg. Frames are
// cleared to clear.
func New(graphics Graphics, cfg core.RegistryConfiguration, clear glm.Vec4, logger log.FieldLogger) *Registry {
	logger = core.LoggerOrDefault(logger)
	if cfg.Max3DObjects <= 0 {
		cfg.Max3DObjects = core.DefaultMax3DObjects
	}
	if cfg.MaxSpriteObjects <= 0 {
		cfg.MaxSpriteObjects = core.DefaultMaxSpriteObjects
	}

	logger.WithFields(log.Fields{
		"capacity":       cfg.Max3DObjects,
		"spriteCapacity": cfg.MaxSpriteObjects,
	}).Debug("renderable registry created")

	return &Registry{
		graphics:    graphics,
		log:         logger,
		clear:       clear,
		objects:     pool.New[Renderable](cfg.Max3DObjects),
		sprites:     pool.New[*gfx.Sprite](cfg.MaxSpriteObjects),
		order:       make([]pool.Handle, 0, cfg.Max3DObjects),
		spriteOrder: make([]pool.Handle, 0, cfg.MaxSpriteObjects),
	}
}

// Registry holds the renderable bindings. It is not safe for
// concurrent use.
type Registry struct {
	graphics Graphics
	log      log.FieldLogger
	clear    glm.Vec4

	objects *pool.Pool[Renderable]
	sprites *pool.Pool[*gfx.Sprite]

	// draw order
	order       []pool.Handle
	spriteOrder []pool.Handle

	lines *gfx.DebugLines
}

// SetClearColor changes the color frames are cleared to
func (r *Registry) SetClearColor(clear glm.Vec4) {
	r.clear = clear
}

// AddRenderable binds entity to the material and mesh at the given
// paths. Nothing is registered when either fails to load or the pool
// is full.
func (r *Registry) AddRenderable(entity Entity, materialPath, meshPath string) (pool.Handle, error) {
	if entity == nil {
		return 0, errors.New("registry: nil entity")
	}

	material, err := r.graphics.CreateMaterial(materialPath)
	if err != nil {
		return 0, err
	}
	mesh, err := r.graphics.CreateMesh(meshPath)
	if err != nil {
		material.Release()
		return 0, err
	}

	binding := Renderable{Entity: entity, Material: material, Mesh: mesh}
	h, err := r.objects.Allocate(binding)
	if err != nil {
		binding.release()
		r.log.WithFields(log.Fields{
			"entity":   entity.Name(),
			"capacity": r.objects.Cap(),
		}).Warn("renderable pool exhausted")
		return 0, fmt.Errorf("adding %s: %w", entity.Name().Label(), err)
	}
	r.order = append(r.order, h)
	return h, nil
}

// AddSprite creates a sprite from the texture at texturePath and
// registers it
func (r *Registry) AddSprite(texturePath string, texcoords image.Rectangle, details gfx.SpriteDetails) (pool.Handle, error) {
	sprite, err := r.graphics.CreateSprite(texturePath, texcoords, details)
	if err != nil {
		return 0, err
	}

	h, err := r.sprites.Allocate(sprite)
	if err != nil {
		sprite.Release()
		r.log.WithFields(log.Fields{
			"texture":  texturePath,
			"capacity": r.sprites.Cap(),
		}).Warn("sprite pool exhausted")
		return 0, fmt.Errorf("adding sprite %s: %w", texturePath, err)
	}
	r.spriteOrder = append(r.spriteOrder, h)
	return h, nil
}

// Get returns the binding behind h
func (r *Registry) Get(h pool.Handle) (Renderable, bool) {
	b, ok := r.objects.Get(h)
	if !ok {
		return Renderable{}, false
	}
	return *b, true
}

// Sprite returns the sprite behind h
func (r *Registry) Sprite(h pool.Handle) (*gfx.Sprite, bool) {
	s, ok := r.sprites.Get(h)
	if !ok {
		return nil, false
	}
	return *s, true
}

// RemoveMarkedForDeath drops the bindings of entities marked for
// death. The survivors keep their order. Returns the number removed.
func (r *Registry) RemoveMarkedForDeath() int {
	kept := 0
	for _, h := range r.order {
		b, _ := r.objects.Get(h)
		if !b.Entity.IsMarkedForDeath() {
			r.order[kept] = h
			kept++
			continue
		}
		r.free(h)
	}
	removed := len(r.order) - kept
	clear(r.order[kept:])
	r.order = r.order[:kept]

	if removed > 0 {
		r.log.WithField("removed", removed).Debug("dead renderables removed")
	}
	return removed
}

func (r *Registry) free(h pool.Handle) {
	b, ok := r.objects.Get(h)
	if !ok {
		return
	}
	b.release()
	r.objects.Free(h)
}

func (r *Registry) freeSprite(h pool.Handle) {
	s, ok := r.sprites.Get(h)
	if !ok {
		return
	}
	(*s).Release()
	r.sprites.Free(h)
}

func (r *Registry) find(name core.HashedName) int {
	for idx, h := range r.order {
		b, _ := r.objects.Get(h)
		if b.Entity.Name().Equal(name) {
			return idx
		}
	}
	return -1
}

func (r *Registry) findSprite(name core.HashedName) int {
	for idx, h := range r.spriteOrder {
		s, _ := r.sprites.Get(h)
		if (*s).Name().Equal(name) {
			return idx
		}
	}
	return -1
}

// FindByName returns the first binding whose entity is called name
func (r *Registry) FindByName(name string) (Renderable, bool) {
	idx := r.find(core.NewHashedName(name))
	if idx < 0 {
		return Renderable{}, false
	}
	return r.Get(r.order[idx])
}

// RemoveByName removes the first binding whose entity is called name
func (r *Registry) RemoveByName(name string) bool {
	idx := r.find(core.NewHashedName(name))
	if idx < 0 {
		return false
	}
	r.free(r.order[idx])
	r.order = remove(r.order, idx)
	return true
}

// FindSpriteByName returns the first sprite showing the texture name
func (r *Registry) FindSpriteByName(name string) (*gfx.Sprite, bool) {
	idx := r.findSprite(core.NewHashedName(name))
	if idx < 0 {
		return nil, false
	}
	return r.Sprite(r.spriteOrder[idx])
}

// RemoveSpriteByName removes the first sprite showing the texture name
func (r *Registry) RemoveSpriteByName(name string) bool {
	idx := r.findSprite(core.NewHashedName(name))
	if idx < 0 {
		return false
	}
	r.freeSprite(r.spriteOrder[idx])
	r.spriteOrder = remove(r.spriteOrder, idx)
	return true
}

// SetSpriteFrame selects the animation frame of the first sprite
// showing the texture name
func (r *Registry) SetSpriteFrame(name string, frame int) bool {
	s, ok := r.FindSpriteByName(name)
	if !ok {
		return false
	}
	s.SetFrame(frame)
	return true
}

func remove(hs []pool.Handle, idx int) []pool.Handle {
	copy(hs[idx:], hs[idx+1:])
	hs[len(hs)-1] = 0
	return hs[:len(hs)-1]
}

// RemoveAll drops every binding
func (r *Registry) RemoveAll() {
	for _, h := range r.order {
		r.free(h)
	}
	for _, h := range r.spriteOrder {
		r.freeSprite(h)
	}
	clear(r.order)
	clear(r.spriteOrder)
	r.order = r.order[:0]
	r.spriteOrder = r.spriteOrder[:0]
}

// Len3D is the number of entity bindings
func (r *Registry) Len3D() int { return len(r.order) }

// LenSprites is the number of sprites
func (r *Registry) LenSprites() int { return len(r.spriteOrder) }

// Render draws one frame: dead entities are dropped, then every
// binding is drawn in insertion order, then the debug lines, followed
// by every sprite.
// A lost device returns gfx.ErrDeviceLost before anything is drawn,
// the bindings are kept for the next call.
func (r *Registry) Render() error {
	r.RemoveMarkedForDeath()

	if err := r.graphics.BeginFrame(r.clear); err != nil {
		return err
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if r.graphics.Begin3D() {
		for _, h := range r.order {
			b, _ := r.objects.Get(h)
			keep(r.graphics.Render(b.Material, b.Mesh, b.Entity.Transform()))
		}
		if r.lines != nil {
			keep(r.graphics.RenderLines(r.lines))
		}
	}
	if r.graphics.Begin2D() {
		for _, h := range r.spriteOrder {
			s, _ := r.sprites.Get(h)
			keep(r.graphics.RenderSprite(*s))
		}
	}

	keep(r.graphics.EndFrame())
	return firstErr
}

// Destroy drops every binding and the debug lines. The graphics
// system is not destroyed.
func (r *Registry) Destroy() {
	r.RemoveAll()
	if r.lines != nil {
		r.lines.Release()
		r.lines = nil
	}
}
