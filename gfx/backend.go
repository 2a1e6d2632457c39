package gfx

import (
	"image"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/frameforge/model"
)

// Handle identifies an object created by a Backend. Zero is never
// a valid handle.
type Handle uint32

// Typed handles returned by the Backend create calls
type (
	BufferHandle   Handle
	MaterialHandle Handle
	TextureHandle  Handle
)

// Usage flags passed to buffer creation
type Usage uint32

// Usage flags
const (
	UsageWriteOnly Usage = 1 << iota
	UsageSoftwareProcessing
)

// Window is the surface a device presents into. What the handle
// points to depends on the backend.
type Window interface {
	Handle() unsafe.Pointer
	Size() (width, height int)
}

// DeviceConfiguration is passed to CreateDevice
type DeviceConfiguration struct {
	Width        uint32
	Height       uint32
	Fullscreen   bool
	Antialiasing bool
}

// DeviceInfo describes the created device
type DeviceInfo struct {
	Name string

	// HardwareVertexProcessing selects the buffer usage, see ComputeUsage
	HardwareVertexProcessing bool
}

// ComputeUsage picks buffer usage flags for a device
func ComputeUsage(info DeviceInfo) Usage {
	if info.HardwareVertexProcessing {
		return UsageWriteOnly
	}
	return UsageWriteOnly | UsageSoftwareProcessing
}

// DrawCall is a single mesh draw
type DrawCall struct {
	Material       MaterialHandle
	Texture        TextureHandle
	VertexBuffer   BufferHandle
	IndexBuffer    BufferHandle
	VertexCount    uint32
	IndexCount     uint32
	PrimitiveCount uint32
	Color          glm.Vec4

	Model          glm.Mat4
	ViewProjection glm.Mat4
}

// SpriteCall is a single screen space textured quad. Destination
// coordinates are normalized, 0,0 is the top left of the screen.
type SpriteCall struct {
	Texture TextureHandle
	Source  image.Rectangle

	Left, Top, Width, Height float32
}

// LineCall is a line list in world space, two vertices per line.
// Vertices are only valid during the SubmitLines call.
type LineCall struct {
	Buffer         BufferHandle
	Vertices       []model.Vertex
	ViewProjection glm.Mat4
}

// Backend is the graphics API a System drives. Calls are made from
// a single goroutine.
type Backend interface {
	// CreateDevice initialises the device for window
	CreateDevice(window Window, cfg DeviceConfiguration) (DeviceInfo, error)

	// CreateVertexBuffer uploads the vertex data of info
	CreateVertexBuffer(usage Usage, info *model.DrawInfo) (BufferHandle, error)

	// CreateIndexBuffer uploads the index data of info
	CreateIndexBuffer(usage Usage, info *model.DrawInfo) (BufferHandle, error)

	// CreateMaterial prepares the shading program of a material
	CreateMaterial(info *model.MaterialInfo) (MaterialHandle, error)

	// CreateTexture uploads a decoded image
	CreateTexture(img image.Image) (TextureHandle, error)

	// CreateLineBuffer reserves a vertex buffer rewritten every frame
	// with up to maxLines lines
	CreateLineBuffer(maxLines int) (BufferHandle, error)

	// Clear begins a frame by clearing the render target.
	// Returns ErrDeviceLost when the frame cannot be rendered.
	Clear(color glm.Vec4) error

	// Submit records one mesh draw
	Submit(call DrawCall)

	// SubmitSprite records one sprite draw
	SubmitSprite(call SpriteCall)

	// SubmitLines records one line list draw
	SubmitLines(call LineCall)

	// Present ends the frame. Returns ErrDeviceLost when the
	// frame was lost.
	Present() error

	// Release destroys an object created by one of the create calls
	Release(h Handle)

	// Destroy releases the device
	Destroy()
}
