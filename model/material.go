package model

import (
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/utility/luatable"
)

// MaterialInfo describes how a surface is shaded. Shader paths are
// optional, backends fall back to their default program without them.
type MaterialInfo struct {
	Name           string
	VertexShader   string
	FragmentShader string
	Color          glm.Vec4
	Texture        string

	// Filled by the loader from the shader paths
	VertexShaderCode   []byte
	FragmentShaderCode []byte
}

// ParseMaterialInfo reads a material file
//
//	return {
//		vertexShader = "shaders/mesh.vert.spv",
//		fragmentShader = "shaders/mesh.frag.spv",
//		color = { 1, 1, 1, 1 },
//		texture = "textures/bricks.png",
//	}
//
// Every field is optional, color defaults to opaque white.
func ParseMaterialInfo(name string, data []byte) (*MaterialInfo, error) {
	switch extension(name) {
	case ".mat", ".material", ".lua":
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}

	tbl, err := luatable.Eval(name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}

	info := &MaterialInfo{
		Name:  name,
		Color: glm.Vec4{1, 1, 1, 1},
	}

	for key, dst := range map[string]*string{
		"vertexShader":   &info.VertexShader,
		"fragmentShader": &info.FragmentShader,
		"texture":        &info.Texture,
	} {
		if !tbl.Has(key) {
			continue
		}
		if *dst, err = tbl.String(key); err != nil {
			return nil, corrupt(name, "%s", err)
		}
	}
	if (info.VertexShader == "") != (info.FragmentShader == "") {
		return nil, corrupt(name, "vertexShader and fragmentShader must be given together")
	}

	if tbl.Has("color") {
		col, err := tbl.FloatsField("color", 4)
		if err != nil {
			return nil, corrupt(name, "%s", err)
		}
		copy(info.Color[:], col)
	}
	return info, nil
}
