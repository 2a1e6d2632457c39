// Package assets bundles the resources every build can rely on: a quad
// and a cube mesh, default materials, a checker texture and a small
// sprite sheet. Shaders holds the SPIR-V of the Vulkan backend's
// default programs once they are compiled with go generate.
package assets

import (
	"github.com/gobuffalo/packr"

	"github.com/devblok/frameforge/resource"
)

//go:generate glslangValidator -V shaders/mesh.vert -o shaders/mesh.vert.spv
//go:generate glslangValidator -V shaders/mesh.frag -o shaders/mesh.frag.spv
//go:generate glslangValidator -V shaders/sprite.vert -o shaders/sprite.vert.spv
//go:generate glslangValidator -V shaders/sprite.frag -o shaders/sprite.frag.spv

// Built-in resource paths
const (
	QuadMesh        = "meshes/quad.mesh"
	CubeMesh        = "meshes/cube.mesh"
	DefaultMaterial = "materials/default.mat"
	CheckerMaterial = "materials/checker.mat"
	CheckerTexture  = "textures/checker.png"
	SpriteSheet     = "textures/sprites.png"
)

// SpriteSheetFrames is the number of 16x16 frames in SpriteSheet
const SpriteSheetFrames = 4

// Builtin returns the box of built-in resources
func Builtin() *packr.Box {
	box := packr.NewBox("./builtin")
	return &box
}

// Shaders returns the compiled default shaders, looked up in dir first
func Shaders(dir string) resource.Source {
	chain := resource.Chain{}
	if dir != "" {
		chain = append(chain, resource.Dir(dir))
	}
	return append(chain, resource.NewBox(packr.NewBox("./shaders")))
}
