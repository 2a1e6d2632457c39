// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vulkan

import (
	"image"
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/gfx"
	"github.com/devblok/frameforge/model"
)

// pushConstant is the per draw block every pipeline shares
type pushConstant struct {
	MVP    glm.Mat4
	Color  glm.Vec4
	UVRect glm.Vec4
}

const pushConstantSize = uint32(unsafe.Sizeof(pushConstant{}))

// fullUV samples the whole texture
var fullUV = glm.Vec4{0, 0, 1, 1}

// clipCorrection maps OpenGL clip space, which the gfx camera
// produces, to Vulkan's: y points down and depth is 0..1
var clipCorrection = glm.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func meshConstants(call gfx.DrawCall) pushConstant {
	return pushConstant{
		MVP:    clipCorrection.Mul4(call.ViewProjection.Mul4(call.Model)),
		Color:  call.Color,
		UVRect: fullUV,
	}
}

// lineConstants draws world space lines in their vertex colors
func lineConstants(call gfx.LineCall) pushConstant {
	return pushConstant{
		MVP:    clipCorrection.Mul4(call.ViewProjection),
		Color:  glm.Vec4{1, 1, 1, 1},
		UVRect: fullUV,
	}
}

// spriteConstants places the unit quad drawn by the sprite shader on
// the destination rectangle and selects the source texels
func spriteConstants(call gfx.SpriteCall, textureSize image.Point) pushConstant {
	translate := glm.Translate3D(-1+2*call.Left, -1+2*call.Top, 0)
	scale := glm.Scale3D(2*call.Width, 2*call.Height, 1)
	return pushConstant{
		MVP:    translate.Mul4(scale),
		Color:  glm.Vec4{1, 1, 1, 1},
		UVRect: uvRect(call.Source, textureSize),
	}
}

// uvRect is the source rectangle as origin and size in texture space
func uvRect(src image.Rectangle, size image.Point) glm.Vec4 {
	if size.X <= 0 || size.Y <= 0 || src.Empty() {
		return fullUV
	}
	w, h := float32(size.X), float32(size.Y)
	return glm.Vec4{
		float32(src.Min.X) / w,
		float32(src.Min.Y) / h,
		float32(src.Dx()) / w,
		float32(src.Dy()) / h,
	}
}

func vertexFormat(f model.Format) vk.Format {
	switch f {
	case model.FormatFloat2:
		return vk.FormatR32g32Sfloat
	case model.FormatFloat3:
		return vk.FormatR32g32b32Sfloat
	default:
		return vk.FormatR32g32b32a32Sfloat
	}
}

// vertexInput describes an interleaved layout as a single binding.
// Element locations follow their semantic.
func vertexInput(layout model.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    layout.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}

	attributes := make([]vk.VertexInputAttributeDescription, 0, len(layout.Elements))
	for _, el := range layout.Elements {
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: uint32(el.Semantic),
			Format:   vertexFormat(el.Format),
			Offset:   el.Offset,
		})
	}
	return bindings, attributes
}

// chooseSurfaceFormat prefers 8bit BGRA, then RGBA, then whatever the
// surface lists first
func chooseSurfaceFormat(formats []vk.Format) int {
	for _, preferred := range []vk.Format{vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm} {
		for idx, f := range formats {
			if f == preferred {
				return idx
			}
		}
	}
	return 0
}

// swapchainImageCount clamps the wanted count to what the surface allows,
// max 0 means no limit
func swapchainImageCount(want, min, max uint32) uint32 {
	if want < min {
		want = min
	}
	if max > 0 && want > max {
		want = max
	}
	return want
}

// clearColor converts a color to a Vulkan clear value
func clearColor(c glm.Vec4) []float32 {
	return []float32{c[0], c[1], c[2], c[3]}
}
