package main

import (
	"image"
	"time"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/assets"
	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/registry"
)

// scene is the demo: a spinning cube, a checkered quad behind it and
// an animated sprite in the top left corner
type scene struct {
	reg  *registry.Registry
	cube *registry.Actor
	quad *registry.Actor

	elapsed time.Duration
}

// spriteFrameTime is how long each sprite sheet frame is shown
const spriteFrameTime = 150 * time.Millisecond

func newScene(reg *registry.Registry) (*scene, error) {
	s := &scene{
		reg:  reg,
		cube: registry.NewActor("cube"),
		quad: registry.NewActor("floor"),
	}

	s.cube.SetPosition(glm.Vec3{0, 0, 0})
	if _, err := reg.AddRenderable(s.cube, assets.DefaultMaterial, assets.CubeMesh); err != nil {
		return nil, err
	}

	s.quad.SetPosition(glm.Vec3{0, 0, -1.5})
	s.quad.SetScale(glm.Vec3{3, 3, 1})
	if _, err := reg.AddRenderable(s.quad, assets.CheckerMaterial, assets.QuadMesh); err != nil {
		return nil, err
	}

	// world axes, drawn in debug builds only
	if err := reg.CreateDebugLines("axes", 3); err != nil {
		return nil, err
	}
	for _, axis := range [...]glm.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		if err := reg.AddDebugLines(gfx.Line{To: axis.Mul(2), Color: axis.Vec4(1)}); err != nil {
			return nil, err
		}
	}

	_, err := reg.AddSprite(assets.SpriteSheet, image.Rect(0, 0, 16*assets.SpriteSheetFrames, 16), gfx.SpriteDetails{
		Left:             0.02,
		Top:              0.02,
		Width:            0.08,
		HorizontalFrames: assets.SpriteSheetFrames,
		VerticalFrames:   1,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// update advances the animation by dt
func (s *scene) update(dt time.Duration) {
	s.elapsed += dt
	angle := float32(dt.Seconds())
	s.cube.Rotate(angle, glm.Vec3{0, 1, 0})
	s.cube.Rotate(angle*0.5, glm.Vec3{1, 0, 0})

	s.reg.SetSpriteFrame(assets.SpriteSheet, int(s.elapsed/spriteFrameTime))
}
